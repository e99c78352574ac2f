package ackeys

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const keyColumns = `key_id, algorithm, public_key, private_enc, created_at, rotated_out_at, expires_at`

// Store provides Postgres-backed access to the signing-key table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanSigningKey(row pgx.Row) (SigningKey, error) {
	var k SigningKey
	err := row.Scan(&k.KeyID, &k.Algorithm, &k.PublicKey, &k.PrivateEnc, &k.CreatedAt, &k.RotatedOutAt, &k.ExpiresAt)
	return k, err
}

// ActiveKey returns the single key with rotated_out_at IS NULL — the
// current signer.
func (s *Store) ActiveKey(ctx context.Context) (SigningKey, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM signing_keys WHERE rotated_out_at IS NULL`)
	k, err := scanSigningKey(row)
	if err != nil {
		return SigningKey{}, fmt.Errorf("querying active key: %w", err)
	}
	return k, nil
}

// ValidatorKeys returns every key a validator should currently accept:
// the active key plus any rotated-out key still inside its grace window.
func (s *Store) ValidatorKeys(ctx context.Context, now time.Time) ([]SigningKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+keyColumns+` FROM signing_keys
		WHERE rotated_out_at IS NULL OR expires_at > $1
		ORDER BY created_at DESC`, now)
	if err != nil {
		return nil, fmt.Errorf("querying validator keys: %w", err)
	}
	defer rows.Close()

	var out []SigningKey
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning signing key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// LastRotationAt returns the most recent created_at among all keys, used
// to evaluate rotation eligibility.
func (s *Store) LastRotationAt(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(created_at), 'epoch') FROM signing_keys`).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("querying last rotation time: %w", err)
	}
	return t, nil
}

// rotationLockID is the fixed advisory-lock key used to serialize
// rotation across every AC replica (spec §4.3 step 1).
const rotationLockID = 0x4441524b544f5752 // "DARKTOWR" as an int64 constant

// TryAdvisoryLock attempts to acquire the rotation advisory lock without
// blocking. conn must be released by the caller; the lock is held for
// its lifetime and released by ReleaseAdvisoryLock or the connection's
// return to the pool.
func (s *Store) TryAdvisoryLock(ctx context.Context) (*pgxpool.Conn, bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquiring connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, rotationLockID).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("acquiring advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return conn, true, nil
}

// ReleaseAdvisoryLock releases the rotation lock and returns the
// connection to the pool.
func ReleaseAdvisoryLock(ctx context.Context, conn *pgxpool.Conn) {
	defer conn.Release()
	_, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, rotationLockID)
}

// RotateWithinLock performs the atomic state transition of spec §4.3 step
// 3 on the connection already holding the advisory lock: marks the
// current active key rotated_out, inserts the new active key. Both
// changes commit together or not at all.
func (s *Store) RotateWithinLock(ctx context.Context, conn *pgxpool.Conn, newKey SigningKey) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `UPDATE signing_keys SET rotated_out_at = $1 WHERE rotated_out_at IS NULL`, newKey.CreatedAt); err != nil {
		return fmt.Errorf("marking previous key rotated out: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO signing_keys (`+keyColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		newKey.KeyID, newKey.Algorithm, newKey.PublicKey, newKey.PrivateEnc, newKey.CreatedAt, newKey.RotatedOutAt, newKey.ExpiresAt,
	); err != nil {
		return fmt.Errorf("inserting new key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// DeleteExpired removes keys whose grace window has passed, per the
// lifecycle note in spec §3 ("deleted once expires_at passes").
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM signing_keys WHERE rotated_out_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
