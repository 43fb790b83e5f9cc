package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
)

// Send actions recorded in the ledger.
const (
	ActionSend   = "send"
	ActionDelete = "delete"
)

// Send describes one payload written to a sink.
type Send struct {
	ID     string    `json:"id"`
	Action string    `json:"action"`
	Sink   string    `json:"sink"`
	Size   int64     `json:"size"`
	Chunks int       `json:"chunks"`
	SHA256 string    `json:"sha256"`
	BLAKE3 string    `json:"blake3"`
	SentAt time.Time `json:"sent_at"`
}

// RecordSend appends a send to the ledger. ID and SentAt are filled in
// when empty; the stored row is returned.
func (s *Store) RecordSend(ctx context.Context, send Send) (Send, error) {
	if send.Sink == "" {
		return Send{}, errors.New("meta: sink required")
	}
	for name, sum := range map[string]string{"sha256": send.SHA256, "blake3": send.BLAKE3} {
		if sum != "" && !chunk.ValidDigest(sum) {
			return Send{}, fmt.Errorf("meta: malformed %s %q", name, sum)
		}
	}
	if send.Action == "" {
		send.Action = ActionSend
	}
	if send.ID == "" {
		send.ID = uuid.NewString()
	}
	if send.SentAt.IsZero() {
		send.SentAt = s.clk.Now()
	}
	send.SentAt = send.SentAt.UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sends(send_id, action, sink, size, chunks, sha256, blake3, sent_at, hlc_ts)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		send.ID, send.Action, send.Sink, send.Size, send.Chunks, send.SHA256, send.BLAKE3,
		send.SentAt.Format(time.RFC3339Nano), s.hlc.Next())
	if err != nil {
		return Send{}, err
	}
	return send, nil
}

// ListSends returns the most recent sends, newest first. limit <= 0 means all.
func (s *Store) ListSends(ctx context.Context, limit int) ([]Send, error) {
	query := `SELECT send_id, action, sink, size, chunks, sha256, blake3, sent_at FROM sends ORDER BY hlc_ts DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Send
	for rows.Next() {
		send, err := scanSend(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, send)
	}
	return out, rows.Err()
}

// LastSend returns the newest send recorded for sink.
func (s *Store) LastSend(ctx context.Context, sink string) (Send, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT send_id, action, sink, size, chunks, sha256, blake3, sent_at
FROM sends WHERE sink=? ORDER BY hlc_ts DESC LIMIT 1`, sink)
	send, err := scanSend(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Send{}, ErrNotFound
	}
	return send, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSend(row scanner) (Send, error) {
	var (
		send   Send
		sentAt string
	)
	if err := row.Scan(&send.ID, &send.Action, &send.Sink, &send.Size, &send.Chunks, &send.SHA256, &send.BLAKE3, &sentAt); err != nil {
		return Send{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, sentAt)
	if err != nil {
		return Send{}, err
	}
	send.SentAt = t
	return send, nil
}
