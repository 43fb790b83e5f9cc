package meta

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Verification states.
const (
	StateIntact  = "INTACT"
	StateDamaged = "DAMAGED"
)

// Verification records the outcome of one integrity check. BadLink is -1
// when the chain was intact.
type Verification struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Chunks    int       `json:"chunks"`
	State     string    `json:"state"`
	BadLink   int       `json:"bad_link"`
	CheckedAt time.Time `json:"checked_at"`
}

// RecordVerification stores an integrity check result.
func (s *Store) RecordVerification(ctx context.Context, source string, chunks int, badLink int) (Verification, error) {
	v := Verification{
		ID:        uuid.NewString(),
		Source:    source,
		Chunks:    chunks,
		State:     StateIntact,
		BadLink:   -1,
		CheckedAt: s.clk.Now().UTC(),
	}
	var bad any
	if badLink >= 0 {
		v.State = StateDamaged
		v.BadLink = badLink
		bad = badLink
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO verifications(verify_id, source, chunks, state, bad_link, checked_at, hlc_ts)
VALUES(?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Source, v.Chunks, v.State, bad, v.CheckedAt.Format(time.RFC3339Nano), s.hlc.Next())
	if err != nil {
		return Verification{}, err
	}
	return v, nil
}

// CountDamaged returns how many recorded checks found corruption.
func (s *Store) CountDamaged(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verifications WHERE state=?", StateDamaged).Scan(&n)
	return n, err
}
