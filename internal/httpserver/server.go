package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// ServerConfig configures the shared HTTP scaffolding.
type ServerConfig struct {
	CORSAllowedOrigins []string
}

// Server is the shared HTTP scaffolding every Dark Tower process exposes:
// liveness, readiness, and metrics, plus a Router apps mount their own
// routes onto.
type Server struct {
	Router *chi.Mux

	logger    *slog.Logger
	db        *pgxpool.Pool
	redis     *redis.Client
	startedAt time.Time
}

// NewServer builds the shared router with request-id/logging/metrics/CORS
// middleware and the standard operational endpoints.
func NewServer(cfg ServerConfig, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, reg *prometheus.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		logger:    logger,
		db:        db,
		redis:     rdb,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(chimw.RealIP)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(chimw.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/ready", s.handleReady)
	s.Router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return s
}

// handleHealth is liveness: always 200 while the process is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkResult struct {
	name string
	ok   bool
}

// handleReady is readiness: 503 with a generic message if the database
// (or Redis, for services that use it) is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var checks []checkResult
	allOK := true

	if s.db != nil {
		ok := s.db.Ping(ctx) == nil
		checks = append(checks, checkResult{"database", ok})
		allOK = allOK && ok
	}
	if s.redis != nil {
		ok := s.redis.Ping(ctx).Err() == nil
		checks = append(checks, checkResult{"redis", ok})
		allOK = allOK && ok
	}

	if !allOK {
		for _, c := range checks {
			if !c.ok {
				s.logger.Warn("readiness check failed", "check", c.name)
			}
		}
		Respond(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
