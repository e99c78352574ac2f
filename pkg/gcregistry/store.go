package gcregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const memberColumns = `kind, controller_id, region, grpc_endpoint, webtransport_endpoint,
	capacity_meetings, capacity_participants, current_meetings, current_participants,
	health_status, last_heartbeat, created_at, bandwidth_mbps_capacity, bandwidth_mbps_current`

// Store provides Postgres-backed access to the single fleet_members table,
// which holds both MC and MH rows distinguished by kind.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanMember(row pgx.Row) (MemberType, Member, error) {
	var kind MemberType
	var m Member
	err := row.Scan(&kind, &m.ControllerID, &m.Region, &m.GRPCEndpoint, &m.WebtransportEndpoint,
		&m.CapacityMeetings, &m.CapacityParticipants, &m.CurrentMeetings, &m.CurrentParticipants,
		&m.HealthStatus, &m.LastHeartbeat, &m.CreatedAt, &m.BandwidthMbpsCapacity, &m.BandwidthMbpsCurrent)
	return kind, m, err
}

// Register upserts a fleet member by (kind, controller_id). A brand-new row
// starts pending; registering an id that already exists leaves its health
// status untouched (re-registration is not itself a health signal).
func (s *Store) Register(ctx context.Context, kind MemberType, m Member) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fleet_members (`+memberColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,0,$8,$9,$9,$10,0)
		ON CONFLICT (kind, controller_id) DO UPDATE SET
			region = EXCLUDED.region,
			grpc_endpoint = EXCLUDED.grpc_endpoint,
			webtransport_endpoint = EXCLUDED.webtransport_endpoint,
			capacity_meetings = EXCLUDED.capacity_meetings,
			capacity_participants = EXCLUDED.capacity_participants,
			bandwidth_mbps_capacity = EXCLUDED.bandwidth_mbps_capacity,
			last_heartbeat = EXCLUDED.last_heartbeat`,
		kind, m.ControllerID, m.Region, m.GRPCEndpoint, m.WebtransportEndpoint,
		m.CapacityMeetings, m.CapacityParticipants, StatusPending, time.Now().UTC(), m.BandwidthMbpsCapacity)
	if err != nil {
		return fmt.Errorf("registering %s %q: %w", kind, m.ControllerID, err)
	}
	return nil
}

// FastHeartbeat updates load counts and last_heartbeat, promoting a
// pending member to healthy on its first heartbeat.
func (s *Store) FastHeartbeat(ctx context.Context, kind MemberType, id string, counts HeartbeatCounts) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fleet_members SET
			current_meetings = $3,
			current_participants = $4,
			last_heartbeat = $5,
			health_status = CASE WHEN health_status = $6 THEN $7 ELSE health_status END
		WHERE kind = $1 AND controller_id = $2`,
		kind, id, counts.CurrentMeetings, counts.CurrentParticipants, time.Now().UTC(), StatusPending, StatusHealthy)
	if err != nil {
		return fmt.Errorf("fast heartbeat for %s %q: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRegistered
	}
	return nil
}

// ComprehensiveHeartbeat updates load counts, resource metrics, and
// last_heartbeat, with the same pending-to-healthy promotion as
// FastHeartbeat.
func (s *Store) ComprehensiveHeartbeat(ctx context.Context, kind MemberType, id string, counts HeartbeatCounts, resources ResourceMetrics) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fleet_members SET
			current_meetings = $3,
			current_participants = $4,
			bandwidth_mbps_current = $5,
			last_heartbeat = $6,
			health_status = CASE WHEN health_status = $7 THEN $8 ELSE health_status END
		WHERE kind = $1 AND controller_id = $2`,
		kind, id, counts.CurrentMeetings, counts.CurrentParticipants, resources.BandwidthMbpsCurrent,
		time.Now().UTC(), StatusPending, StatusHealthy)
	if err != nil {
		return fmt.Errorf("comprehensive heartbeat for %s %q: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRegistered
	}
	return nil
}

// Get returns a single fleet member by kind and id.
func (s *Store) Get(ctx context.Context, kind MemberType, id string) (Member, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM fleet_members WHERE kind = $1 AND controller_id = $2`, kind, id)
	_, m, err := scanMember(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Member{}, ErrNotRegistered
		}
		return Member{}, fmt.Errorf("querying %s %q: %w", kind, id, err)
	}
	return m, nil
}

// Healthy returns every healthy member of the given kind with spare
// capacity — the candidate pool for C7 selection.
func (s *Store) Healthy(ctx context.Context, kind MemberType) ([]Member, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+memberColumns+` FROM fleet_members
		WHERE kind = $1 AND health_status = $2
		  AND current_meetings < capacity_meetings AND current_participants < capacity_participants`,
		kind, StatusHealthy)
	if err != nil {
		return nil, fmt.Errorf("querying healthy %s candidates: %w", kind, err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		_, m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s candidate: %w", kind, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkStaleUnhealthy transitions every healthy-or-degraded member whose
// last_heartbeat predates the threshold to unhealthy. It never deletes
// rows. Returns the ids transitioned, per kind, for state-transition
// logging at the call site.
func (s *Store) MarkStaleUnhealthy(ctx context.Context, threshold time.Duration) ([]Transition, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := s.pool.Query(ctx, `
		UPDATE fleet_members SET health_status = $1
		WHERE health_status IN ($2, $3) AND last_heartbeat < $4
		RETURNING kind, controller_id, region`, StatusUnhealthy, StatusHealthy, StatusDegraded, cutoff)
	if err != nil {
		return nil, fmt.Errorf("marking stale members unhealthy: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.Kind, &t.ControllerID, &t.Region); err != nil {
			return nil, fmt.Errorf("scanning staleness transition: %w", err)
		}
		t.From = string(StatusHealthy)
		t.To = string(StatusUnhealthy)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountsByStatus returns the registered-controller count for every
// (kind, status) pair actually present, for the registered_controllers
// gauge recomputation (bounded at 2 kinds x 5 statuses).
func (s *Store) CountsByStatus(ctx context.Context) (map[MemberType]map[HealthStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT kind, health_status, COUNT(*) FROM fleet_members GROUP BY kind, health_status`)
	if err != nil {
		return nil, fmt.Errorf("querying fleet counts: %w", err)
	}
	defer rows.Close()

	out := map[MemberType]map[HealthStatus]int{}
	for rows.Next() {
		var kind MemberType
		var status HealthStatus
		var count int
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return nil, fmt.Errorf("scanning fleet count: %w", err)
		}
		if out[kind] == nil {
			out[kind] = map[HealthStatus]int{}
		}
		out[kind][status] = count
	}
	return out, rows.Err()
}

// Transition records a single health-status change for INFO logging.
type Transition struct {
	Kind         MemberType
	ControllerID string
	Region       string
	From         string
	To           string
}
