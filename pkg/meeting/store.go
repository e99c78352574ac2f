package meeting

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const meetingColumns = `id, code, name, host_participant_id, allow_external_participants, allow_guests, created_at, ended_at`

// Store provides Postgres-backed access to the meetings table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanMeeting(row pgx.Row) (Meeting, error) {
	var m Meeting
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.HostParticipantID, &m.AllowExternalParticipants, &m.AllowGuests, &m.CreatedAt, &m.EndedAt)
	return m, err
}

// ErrNotFound is returned by GetByCode/GetByID when no row matches.
var ErrNotFound = fmt.Errorf("meeting: not found")

// GetByCode resolves a join code to full meeting metadata.
func (s *Store) GetByCode(ctx context.Context, code string) (Meeting, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE code = $1`, code)
	m, err := scanMeeting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Meeting{}, ErrNotFound
		}
		return Meeting{}, fmt.Errorf("querying meeting by code %q: %w", code, err)
	}
	return m, nil
}

// GetByID loads meeting metadata by id.
func (s *Store) GetByID(ctx context.Context, id string) (Meeting, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id)
	m, err := scanMeeting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Meeting{}, ErrNotFound
		}
		return Meeting{}, fmt.Errorf("querying meeting %q: %w", id, err)
	}
	return m, nil
}

// UpdateSettings applies a partial update, leaving unset fields unchanged.
func (s *Store) UpdateSettings(ctx context.Context, id string, u SettingsUpdate) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE meetings SET
			name = COALESCE($2, name),
			allow_external_participants = COALESCE($3, allow_external_participants),
			allow_guests = COALESCE($4, allow_guests)
		WHERE id = $1`, id, u.Name, u.AllowExternalParticipants, u.AllowGuests)
	if err != nil {
		return fmt.Errorf("updating meeting %q settings: %w", id, err)
	}
	return nil
}
