package mcsession

import (
	"context"
	"time"

	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
)

// RedirectToMc is returned when a reconnecting client's meeting has since
// been reassigned to a different MC.
type RedirectToMc struct {
	NewMC string
}

// ReconnectResult is the outcome of a reconnect attempt.
type ReconnectResult struct {
	Outcome   Outcome
	Redirect  *RedirectToMc
	FullRejoin bool // true if the recovery buffer was exceeded
}

// GenerationResolver answers "what MC currently holds meetingID, and at
// what fencing generation" so Reconnect can detect a reassignment. MC
// processes back this with a small cache refreshed from the GC's fleet
// assignment records; it is intentionally decoupled from any one
// transport here.
type GenerationResolver func(ctx context.Context, meetingID string) (mcID string, generation int64, err error)

// Reconnect validates a presented binding token and last-sequence
// checkpoint per spec §4.10's four steps.
func (b *Binder) Reconnect(ctx context.Context, raw string, lastSequenceNumber int64, localMC string, localGeneration int64, currentSequence int64, resolve GenerationResolver) (ReconnectResult, error) {
	p, err := b.decode(raw)
	if err != nil {
		return ReconnectResult{}, err
	}

	issuedAt := time.UnixMilli(p.IssuedAt)
	if time.Since(issuedAt) > b.ttl {
		telemetry.MCSessionTokenTotal.WithLabelValues(string(OutcomeExpired)).Inc()
		return ReconnectResult{Outcome: OutcomeExpired}, ErrExpired
	}

	if err := b.fenced.ConsumeNonce(ctx, p.Nonce, b.ttl); err != nil {
		telemetry.MCSessionTokenTotal.WithLabelValues(string(OutcomeReplayed)).Inc()
		return ReconnectResult{Outcome: OutcomeReplayed}, ErrReplayed
	}

	mcID, generation, err := resolve(ctx, p.MeetingID)
	if err != nil {
		return ReconnectResult{}, err
	}
	if mcID != localMC || generation != localGeneration {
		telemetry.MCSessionTokenTotal.WithLabelValues(string(OutcomeRedirected)).Inc()
		return ReconnectResult{Outcome: OutcomeRedirected, Redirect: &RedirectToMc{NewMC: mcID}}, nil
	}

	if currentSequence-lastSequenceNumber <= b.recoveryBuffer {
		telemetry.MCSessionTokenTotal.WithLabelValues(string(OutcomeResumed)).Inc()
		return ReconnectResult{Outcome: OutcomeResumed}, nil
	}

	telemetry.MCSessionTokenTotal.WithLabelValues(string(OutcomeResumed)).Inc()
	return ReconnectResult{Outcome: OutcomeResumed, FullRejoin: true}, nil
}
