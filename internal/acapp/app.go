// Package acapp composes the Authentication Controller process: config,
// logging, Postgres, the key store and rotator, the token service, and
// the HTTP surface.
package acapp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/nbuckles13/dark-tower-sub010/internal/config"
	"github.com/nbuckles13/dark-tower-sub010/internal/platform"
	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
	ihttp "github.com/nbuckles13/dark-tower-sub010/internal/httpserver"
	"github.com/nbuckles13/dark-tower-sub010/pkg/achandlers"
	"github.com/nbuckles13/dark-tower-sub010/pkg/ackeys"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
)

const issuer = "darktower-ac"

// Run starts the AC process and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.ACConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	master, err := ackeys.DecodeMasterKey(cfg.MasterKey)
	if err != nil {
		return fmt.Errorf("decoding master key: %w", err)
	}

	keyStore := ackeys.NewStore(pool)
	rotator := ackeys.NewRotator(keyStore, master, ackeys.RotationConfig{
		NormalPeriod:   time.Duration(cfg.RotationNormalPeriodHours) * time.Hour,
		MinForcePeriod: time.Duration(cfg.RotationMinForcePeriodMinutes) * time.Minute,
		Grace:          time.Duration(cfg.KeyGraceHours) * time.Hour,
	})

	// Bootstrap the first signing key if none exists yet.
	if _, err := keyStore.ActiveKey(ctx); err != nil {
		logger.Info("no active signing key found, bootstrapping one")
		if _, err := rotator.Rotate(ctx, true); err != nil {
			return fmt.Errorf("bootstrapping signing key: %w", err)
		}
	}

	signer := actoken.NewSigner(keyStore, master, issuer)
	validator := actoken.NewValidator(func(ctx context.Context) (jose.JSONWebKeySet, error) {
		keys, err := keyStore.ValidatorKeys(ctx, time.Now().UTC())
		if err != nil {
			return jose.JSONWebKeySet{}, err
		}
		return ackeys.BuildJWKS(keys)
	}, issuer, time.Duration(cfg.JWTClockSkewSeconds)*time.Second)

	clients := actoken.NewPGClientStore(pool)
	tokenSvc, err := actoken.NewService(clients, signer, cfg.BcryptCost, secret.New(cfg.HashSecret))
	if err != nil {
		return fmt.Errorf("building token service: %w", err)
	}

	h := achandlers.NewHandler(logger, tokenSvc, signer, keyStore, rotator, clients, cfg.BcryptCost)

	reg := telemetry.NewMetricsRegistry()
	srv := ihttp.NewServer(ihttp.ServerConfig{CORSAllowedOrigins: []string{"*"}}, logger, pool, nil, reg)

	srv.Router.Post("/api/v1/auth/service/token", h.HandleServiceToken)
	srv.Router.Post("/api/v1/auth/internal/meeting-token", achandlers.RequireServiceScope(validator, logger, "internal:meeting-token")(http.HandlerFunc(h.HandleMeetingToken)).ServeHTTP)
	srv.Router.Post("/api/v1/auth/internal/guest-token", achandlers.RequireServiceScope(validator, logger, "internal:guest-token")(http.HandlerFunc(h.HandleGuestToken)).ServeHTTP)
	srv.Router.Post("/api/v1/admin/services/register", achandlers.RequireServiceScope(validator, logger, "admin")(http.HandlerFunc(h.HandleRegisterClient)).ServeHTTP)
	srv.Router.Post("/api/v1/admin/services/rotate-secret", achandlers.RequireServiceScope(validator, logger, "admin")(http.HandlerFunc(h.HandleRotateClientSecret)).ServeHTTP)
	srv.Router.Get("/.well-known/jwks.json", h.HandleJWKS)
	srv.Router.Post("/internal/rotate-keys", achandlers.RequireServiceScope(validator, logger, "admin")(http.HandlerFunc(h.HandleRotateKeys)).ServeHTTP)

	httpSrv := &http.Server{Addr: cfg.ListenAddr(), Handler: srv.Router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ac listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
