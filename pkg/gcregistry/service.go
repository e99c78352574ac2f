package gcregistry

import (
	"context"
	"log/slog"
	"time"

	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
)

// Config bounds the default heartbeat interval hints returned to fleet
// members (spec §4.6).
type Config struct {
	StalenessThreshold            time.Duration
	FastHeartbeatIntervalSeconds  int
	ComprehensiveIntervalSeconds  int
}

// DefaultConfig matches the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		StalenessThreshold:           30 * time.Second,
		FastHeartbeatIntervalSeconds: 10,
		ComprehensiveIntervalSeconds: 30,
	}
}

// Service is the fleet registry's operational surface: registration,
// heartbeats, and the staleness reaper, wrapping Store with logging and
// metrics.
type Service struct {
	store  *Store
	cfg    Config
	logger *slog.Logger
}

// NewService builds a Service.
func NewService(store *Store, cfg Config, logger *slog.Logger) *Service {
	return &Service{store: store, cfg: cfg, logger: logger}
}

// Register upserts a fleet member and recomputes the registered-controller
// gauge.
func (s *Service) Register(ctx context.Context, kind MemberType, m Member) error {
	if err := s.store.Register(ctx, kind, m); err != nil {
		return err
	}
	s.logger.Info("fleet member registered", "kind", kind, "id", m.ControllerID, "region", m.Region)
	s.recomputeGauge(ctx)
	return nil
}

// FastHeartbeat records load counts and returns the current interval hint.
func (s *Service) FastHeartbeat(ctx context.Context, kind MemberType, id string, counts HeartbeatCounts) (Intervals, error) {
	if err := s.store.FastHeartbeat(ctx, kind, id, counts); err != nil {
		return Intervals{}, err
	}
	telemetry.GCHeartbeatTotal.WithLabelValues(string(kind), "fast").Inc()
	s.recomputeGauge(ctx)
	return s.intervals(), nil
}

// ComprehensiveHeartbeat records load counts and resource metrics and
// returns the current interval hint.
func (s *Service) ComprehensiveHeartbeat(ctx context.Context, kind MemberType, id string, counts HeartbeatCounts, resources ResourceMetrics) (Intervals, error) {
	if err := s.store.ComprehensiveHeartbeat(ctx, kind, id, counts, resources); err != nil {
		return Intervals{}, err
	}
	telemetry.GCHeartbeatTotal.WithLabelValues(string(kind), "comprehensive").Inc()
	s.recomputeGauge(ctx)
	return s.intervals(), nil
}

// GetController returns a single MC registration record.
func (s *Service) GetController(ctx context.Context, id string) (Member, error) {
	return s.store.Get(ctx, MemberMC, id)
}

// GetHandler returns a single MH registration record.
func (s *Service) GetHandler(ctx context.Context, id string) (Member, error) {
	return s.store.Get(ctx, MemberMH, id)
}

// HealthyControllers returns the MC candidate pool for C7 selection.
func (s *Service) HealthyControllers(ctx context.Context) ([]Member, error) {
	return s.store.Healthy(ctx, MemberMC)
}

// HealthyHandlers returns the MH candidate pool for C7 selection.
func (s *Service) HealthyHandlers(ctx context.Context) ([]Member, error) {
	return s.store.Healthy(ctx, MemberMH)
}

func (s *Service) intervals() Intervals {
	return Intervals{
		FastHeartbeatSeconds:         s.cfg.FastHeartbeatIntervalSeconds,
		ComprehensiveHeartbeatSeconds: s.cfg.ComprehensiveIntervalSeconds,
	}
}

// RunReaper starts the staleness-sweep background task. It blocks until ctx
// is cancelled, ticking at the configured staleness threshold — mirroring
// the ticker+select shape used elsewhere in the codebase for background
// workers.
func (s *Service) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StalenessThreshold)
	defer ticker.Stop()

	s.logger.Info("fleet staleness reaper started", "threshold", s.cfg.StalenessThreshold)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("fleet staleness reaper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	transitions, err := s.store.MarkStaleUnhealthy(ctx, s.cfg.StalenessThreshold)
	if err != nil {
		s.logger.Error("staleness sweep failed", "error", err)
		return
	}
	for _, t := range transitions {
		s.logger.Info("fleet member health transition",
			"id", t.ControllerID, "region", t.Region, "from", t.From, "to", t.To)
	}
	if len(transitions) > 0 {
		s.recomputeGauge(ctx)
	}
}

func (s *Service) recomputeGauge(ctx context.Context) {
	counts, err := s.store.CountsByStatus(ctx)
	if err != nil {
		s.logger.Error("recomputing fleet gauge failed", "error", err)
		return
	}
	for kind, byStatus := range counts {
		for status, n := range byStatus {
			telemetry.GCRegisteredControllers.WithLabelValues(string(kind), string(status)).Set(float64(n))
		}
	}
}
