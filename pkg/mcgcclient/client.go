// Package mcgcclient implements the MC's GC client (C11): boot-time
// registration with bounded retries, dual-interval heartbeats carrying
// the current C1 bearer token, and re-registration on a gRPC NOT_FOUND
// heartbeat response.
package mcgcclient

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/grpc/metadata"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr/grpcerr"
	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
)

// DefaultRegistrationMaxAttempts and DefaultRegistrationAbsoluteDeadline are
// the fallback boot-time registration bounds (spec §4.11) used when Config
// leaves the corresponding fields at zero; re-registration after a
// NOT_FOUND heartbeat always retries indefinitely with a fixed pause
// instead, regardless of these bounds.
const (
	DefaultRegistrationMaxAttempts      = 20
	DefaultRegistrationAbsoluteDeadline = 5 * time.Minute
	reRegistrationPause                 = 5 * time.Second
)

// Config describes this MC's registration payload and heartbeat source.
type Config struct {
	ControllerID          string
	Region                string
	GRPCEndpoint          string
	WebtransportEndpoint  string
	CapacityMeetings      int64
	CapacityParticipants  int64
	BandwidthMbpsCapacity int64

	// RegistrationMaxAttempts and RegistrationAbsoluteDeadline bound the
	// initial boot-time registration; zero uses the Default* constants.
	RegistrationMaxAttempts      int
	RegistrationAbsoluteDeadline time.Duration
}

// StatusFunc returns the current load counters a heartbeat should report.
type StatusFunc func() (currentMeetings, currentParticipants int64)

// fleetClient is the slice of rpc.FleetRegistryClient this package calls;
// declared as an interface so tests can substitute a fake instead of
// dialing a real connection.
type fleetClient interface {
	RegisterMC(ctx context.Context, req *rpc.RegisterMemberRequest) (*rpc.HeartbeatResponse, error)
	FastHeartbeat(ctx context.Context, req *rpc.FastHeartbeatRequest) (*rpc.HeartbeatResponse, error)
	ComprehensiveHeartbeat(ctx context.Context, req *rpc.ComprehensiveHeartbeatRequest) (*rpc.HeartbeatResponse, error)
}

// tokenSource supplies the current C1 service bearer; *tokenmanager.Reader
// satisfies this.
type tokenSource interface {
	Token() string
}

// Client drives registration and heartbeats against the GC's fleet
// registry RPC surface.
type Client struct {
	fleet  fleetClient
	tokens tokenSource
	cfg    Config
	logger *slog.Logger

	registered          atomic.Bool
	fastIntervalSeconds atomic.Int64
	compIntervalSeconds atomic.Int64
}

// New builds a Client. fleet is typically an rpc.FleetRegistryClient
// wrapping a dialed *grpc.ClientConn, and tokens a *tokenmanager.Reader.
func New(fleet fleetClient, tokens tokenSource, cfg Config, logger *slog.Logger) *Client {
	if cfg.RegistrationMaxAttempts <= 0 {
		cfg.RegistrationMaxAttempts = DefaultRegistrationMaxAttempts
	}
	if cfg.RegistrationAbsoluteDeadline <= 0 {
		cfg.RegistrationAbsoluteDeadline = DefaultRegistrationAbsoluteDeadline
	}
	c := &Client{fleet: fleet, tokens: tokens, cfg: cfg, logger: logger}
	c.fastIntervalSeconds.Store(10)
	c.compIntervalSeconds.Store(30)
	return c
}

// Start performs the bounded boot-time registration (spec §4.11): up to
// RegistrationMaxAttempts attempts within RegistrationAbsoluteDeadline.
// Past either bound it returns an error, which the caller should treat as
// a fatal startup failure. The caller's gRPC server accepting
// AssignMeetingWithMh MUST already be listening before calling Start.
func (c *Client) Start(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.RegistrationAbsoluteDeadline)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.2

	for attempt := 1; ; attempt++ {
		if err := c.registerOnce(ctx); err == nil {
			return nil
		}
		if attempt >= c.cfg.RegistrationMaxAttempts {
			return ErrRegistrationAttemptsExceeded
		}
		if time.Now().After(deadline) {
			return ErrRegistrationDeadlineExceeded
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return ErrRegistrationDeadlineExceeded
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) registerOnce(ctx context.Context) error {
	req := &rpc.RegisterMemberRequest{
		ControllerID:          c.cfg.ControllerID,
		Region:                c.cfg.Region,
		GRPCEndpoint:          c.cfg.GRPCEndpoint,
		WebtransportEndpoint:  c.cfg.WebtransportEndpoint,
		CapacityMeetings:      c.cfg.CapacityMeetings,
		CapacityParticipants:  c.cfg.CapacityParticipants,
		BandwidthMbpsCapacity: c.cfg.BandwidthMbpsCapacity,
	}
	resp, err := c.fleet.RegisterMC(c.authContext(ctx), req)
	if err != nil {
		telemetry.MCGCRegistrationTotal.WithLabelValues("error").Inc()
		c.logger.Warn("mc registration failed", "error", err)
		return err
	}
	c.fastIntervalSeconds.Store(int64(resp.FastHeartbeatIntervalSeconds))
	c.compIntervalSeconds.Store(int64(resp.ComprehensiveHeartbeatIntervalSeconds))
	c.registered.Store(true)
	telemetry.MCGCRegistrationTotal.WithLabelValues("success").Inc()
	c.logger.Info("mc registered with gc", "controller_id", c.cfg.ControllerID)
	return nil
}

// authContext attaches the current C1 bearer token as outgoing gRPC
// metadata (spec §4.11: "each heartbeat carries the current authorization
// bearer from C1").
func (c *Client) authContext(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.tokens.Token())
}

// Run is the unified GC task (spec §4.11): its outer loop re-attempts
// registration until cancelled, pausing reRegistrationPause between
// failures; its inner loop runs heartbeats until cancellation or a
// NOT_FOUND response. It never returns except on context cancellation.
func (c *Client) Run(ctx context.Context, status StatusFunc) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.registered.Load() {
			if err := c.registerOnce(ctx); err != nil {
				select {
				case <-time.After(reRegistrationPause):
					continue
				case <-ctx.Done():
					return
				}
			}
		}
		c.heartbeatLoop(ctx, status)
	}
}

// heartbeatLoop runs both heartbeat tickers until ctx is cancelled or a
// heartbeat returns NOT_FOUND (detected by gRPC status code), at which
// point it marks the client unregistered and returns to the outer loop.
func (c *Client) heartbeatLoop(ctx context.Context, status StatusFunc) {
	fastTicker := time.NewTicker(time.Duration(c.fastIntervalSeconds.Load()) * time.Second)
	defer fastTicker.Stop()
	compTicker := time.NewTicker(time.Duration(c.compIntervalSeconds.Load()) * time.Second)
	defer compTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fastTicker.C:
			meetings, participants := status()
			_, err := c.fleet.FastHeartbeat(c.authContext(ctx), &rpc.FastHeartbeatRequest{
				Kind:                rpc.MemberKindMC,
				ControllerID:        c.cfg.ControllerID,
				CurrentMeetings:     meetings,
				CurrentParticipants: participants,
			})
			if c.handleHeartbeatErr(err) {
				return
			}
		case <-compTicker.C:
			meetings, participants := status()
			_, err := c.fleet.ComprehensiveHeartbeat(c.authContext(ctx), &rpc.ComprehensiveHeartbeatRequest{
				Kind:                rpc.MemberKindMC,
				ControllerID:        c.cfg.ControllerID,
				CurrentMeetings:     meetings,
				CurrentParticipants: participants,
			})
			if c.handleHeartbeatErr(err) {
				return
			}
		}
	}
}

func (c *Client) handleHeartbeatErr(err error) (stop bool) {
	if err == nil {
		return false
	}
	if grpcerr.IsNotFound(err) {
		c.logger.Warn("mc heartbeat got not_found, marking unregistered", "controller_id", c.cfg.ControllerID)
		telemetry.MCGCRegistrationTotal.WithLabelValues("not_found").Inc()
		c.registered.Store(false)
		return true
	}
	c.logger.Warn("mc heartbeat failed", "error", err)
	return false
}
