// Package meta keeps the SQLite ledger of sends and integrity checks.
package meta

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kk-code-lab/chunkchain/internal/clock"
)

// ErrNotFound is returned when a ledger lookup matches nothing.
var ErrNotFound = errors.New("meta: not found")

// Store wraps the SQLite ledger database.
type Store struct {
	db  *sql.DB
	clk clock.Clock
	hlc *clock.HLC
}

// Open opens or creates the ledger database at the given path.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, clock.RealClock{})
}

// OpenWithClock is Open with an explicit clock for timestamps.
func OpenWithClock(path string, clk clock.Clock) (*Store, error) {
	if path == "" {
		return nil, errors.New("meta: db path required")
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, clk: clk, hlc: clock.NewHLC(clk)}
	if err := store.applyPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.seedHLC(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// seedHLC moves the clock past every stored timestamp so rows written by
// this process sort after rows from earlier ones.
func (s *Store) seedHLC(ctx context.Context) error {
	for _, table := range []string{"sends", "verifications"} {
		var last sql.NullString
		if err := s.db.QueryRowContext(ctx, "SELECT MAX(hlc_ts) FROM "+table).Scan(&last); err != nil {
			return err
		}
		if last.Valid {
			s.hlc.Update(last.String)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Flush forces a WAL checkpoint to durably persist changes.
func (s *Store) Flush() error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *Store) applyPragmas(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous=FULL"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return err
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
)`); err != nil {
		return err
	}

	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}
	now := s.clk.Now().UTC().Format(time.RFC3339Nano)
	if version < 1 {
		if err = applyV1(ctx, tx); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(1, ?)", now); err != nil {
			return err
		}
	}
	if version < 2 {
		if err = applyV2(ctx, tx); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(2, ?)", now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyV1(ctx context.Context, tx *sql.Tx) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS sends (
			send_id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			sink TEXT NOT NULL,
			size INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			sha256 TEXT NOT NULL,
			blake3 TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			hlc_ts TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sends_hlc_idx ON sends(hlc_ts)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func applyV2(ctx context.Context, tx *sql.Tx) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS verifications (
			verify_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			state TEXT NOT NULL,
			bad_link INTEGER,
			checked_at TEXT NOT NULL,
			hlc_ts TEXT NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
