package ackeys

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
)

// ErrRateLimited is returned when the advisory lock is already held by
// another rotation, or rotation eligibility fails.
var ErrRateLimited = errors.New("ackeys: rotation rate limited")

// RotationConfig bounds rotation eligibility.
type RotationConfig struct {
	NormalPeriod   time.Duration // scheduled rotation eligible after this much time
	MinForcePeriod time.Duration // force-rotation eligible after this much time
	Grace          time.Duration // how long a rotated-out key remains valid
}

// Rotator owns the signing-key rotation protocol (spec §4.3).
type Rotator struct {
	store  *Store
	master MasterKey
	cfg    RotationConfig
}

// NewRotator builds a Rotator over store, encrypting new private key
// material under master.
func NewRotator(store *Store, master MasterKey, cfg RotationConfig) *Rotator {
	return &Rotator{store: store, master: master, cfg: cfg}
}

// Rotate runs the full rotation protocol: acquire advisory lock, re-check
// eligibility inside the lock, generate + persist atomically, release.
// force bypasses the normal period in favor of the (shorter) min force
// period, for admin-scoped force-rotation callers.
func (r *Rotator) Rotate(ctx context.Context, force bool) (string, error) {
	conn, acquired, err := r.store.TryAdvisoryLock(ctx)
	if err != nil {
		return "", apierr.New(apierr.InternalError, err, "acquiring rotation advisory lock")
	}
	if !acquired {
		return "", apierr.New(apierr.RateLimited, ErrRateLimited, "rotation already in progress")
	}
	defer ReleaseAdvisoryLock(ctx, conn)

	lastRotation, err := r.store.LastRotationAt(ctx)
	if err != nil {
		return "", apierr.New(apierr.InternalError, err, "reading last rotation time")
	}

	now := time.Now().UTC()
	minPeriod := r.cfg.NormalPeriod
	if force {
		minPeriod = r.cfg.MinForcePeriod
	}
	if now.Sub(lastRotation) < minPeriod {
		return "", apierr.New(apierr.RateLimited, ErrRateLimited, "rotation requested too soon: last=%s min_period=%s", lastRotation, minPeriod)
	}

	pub, privEnc, err := generateKeypair(r.master)
	if err != nil {
		return "", apierr.New(apierr.InternalError, err, "generating signing keypair")
	}

	newKey := SigningKey{
		KeyID:      uuid.New().String(),
		Algorithm:  Algorithm,
		PublicKey:  pub,
		PrivateEnc: privEnc,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.cfg.NormalPeriod + r.cfg.Grace), // generous upper bound; rotated_out_at+Grace is the real validity cutoff once superseded
	}

	if err := r.store.RotateWithinLock(ctx, conn, newKey); err != nil {
		return "", apierr.New(apierr.InternalError, err, "persisting rotation")
	}

	return newKey.KeyID, nil
}
