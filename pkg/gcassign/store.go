package gcassign

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides Postgres-backed access to the meeting_assignments table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Active returns the non-ended assignment for a meeting, if any (spec §4.7
// step 1's idempotence check).
func (s *Store) Active(ctx context.Context, meetingID string) (Assignment, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT meeting_id, controller_id, region, assigned_at, ended_at
		FROM meeting_assignments WHERE meeting_id = $1 AND ended_at IS NULL`, meetingID)

	var a Assignment
	err := row.Scan(&a.MeetingID, &a.ControllerID, &a.Region, &a.AssignedAt, &a.EndedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Assignment{}, false, nil
		}
		return Assignment{}, false, fmt.Errorf("querying active assignment for %q: %w", meetingID, err)
	}
	return a, true, nil
}

// Insert records a freshly accepted assignment (spec §4.7 step 4, executed
// only after the MC has accepted the RPC).
func (s *Store) Insert(ctx context.Context, a Assignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_assignments (meeting_id, controller_id, region, assigned_at)
		VALUES ($1,$2,$3,$4)`, a.MeetingID, a.ControllerID, a.Region, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("inserting assignment for %q: %w", a.MeetingID, err)
	}
	return nil
}

// End marks a meeting's assignment ended, freeing the meeting_id for a
// future reassignment.
func (s *Store) End(ctx context.Context, meetingID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE meeting_assignments SET ended_at = $2
		WHERE meeting_id = $1 AND ended_at IS NULL`, meetingID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ending assignment for %q: %w", meetingID, err)
	}
	return nil
}
