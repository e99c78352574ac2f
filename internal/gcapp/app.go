// Package gcapp composes the Global Controller process: fleet registry
// (gRPC and HTTP), meeting assignment, and the public join/guest-token
// HTTP surface.
package gcapp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr/grpcerr"
	"github.com/nbuckles13/dark-tower-sub010/internal/config"
	ihttp "github.com/nbuckles13/dark-tower-sub010/internal/httpserver"
	"github.com/nbuckles13/dark-tower-sub010/internal/platform"
	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/acclient"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
	"github.com/nbuckles13/dark-tower-sub010/pkg/gcassign"
	"github.com/nbuckles13/dark-tower-sub010/pkg/gchandlers"
	"github.com/nbuckles13/dark-tower-sub010/pkg/gcregistry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/meeting"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
	"github.com/nbuckles13/dark-tower-sub010/pkg/tokenmanager"
)

// acIssuer must match the issuer name AC's signer stamps onto every token.
const acIssuer = "darktower-ac"

// Run starts the GC process and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.GCConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()

	httpClient := &http.Client{Timeout: 10 * time.Second}

	tokens, err := tokenmanager.Start(ctx, tokenmanager.Config{
		ClientID:     cfg.GCClientID,
		ClientSecret: secret.New(cfg.GCClientSecret),
		Endpoint:     cfg.ACEndpoint + "/api/v1/auth/service/token",
		Scopes:       []string{"internal:meeting-token", "internal:guest-token"},
	}, logger, func(ev tokenmanager.RefreshEvent) {
		telemetry.TokenManagerRefreshTotal.WithLabelValues(string(ev.Status), string(ev.ErrorKind)).Inc()
	})
	if err != nil {
		return fmt.Errorf("starting token manager: %w", err)
	}

	validator := actoken.NewValidator(
		actoken.FetchJWKSHTTP(httpClient, cfg.ACEndpoint+"/.well-known/jwks.json", time.Minute),
		acIssuer,
		time.Duration(cfg.JWTClockSkewSeconds)*time.Second,
	)

	registryStore := gcregistry.NewStore(pool)
	registrySvc := gcregistry.NewService(registryStore, gcregistry.Config{
		StalenessThreshold:           time.Duration(cfg.StalenessThresholdSeconds) * time.Second,
		FastHeartbeatIntervalSeconds: cfg.FastHeartbeatIntervalSeconds,
		ComprehensiveIntervalSeconds: cfg.ComprehensiveHeartbeatIntervalSeconds,
	}, logger)

	assignStore := gcassign.NewStore(pool)
	channelPool := gcassign.NewChannelPool()
	defer channelPool.Close()
	assigner := gcassign.NewAssigner(registrySvc, assignStore, channelPool, tokens, cfg.AssignmentMaxRetries, time.Duration(cfg.RPCTimeoutSeconds)*time.Second, logger)

	meetings := meeting.NewStore(pool)
	ac := acclient.New(httpClient, cfg.ACEndpoint, tokens)
	rateLimiter := gchandlers.NewRateLimiter(rdb, 5, time.Hour)

	h := gchandlers.NewHandler(logger, meetings, assigner, ac, rateLimiter, validator)

	reg := telemetry.NewMetricsRegistry()
	srv := ihttp.NewServer(ihttp.ServerConfig{CORSAllowedOrigins: []string{"*"}}, logger, pool, rdb, reg)
	h.Routes(srv.Router)

	httpSrv := &http.Server{Addr: cfg.ListenAddr(), Handler: srv.Router}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		rpc.RequireServiceToken(validator, logger),
		grpcerr.UnaryServerInterceptor(logger),
	))
	grpcSrv.RegisterService(&rpc.FleetRegistryServiceDesc, gcregistry.NewGRPCServer(registrySvc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("binding grpc listener: %w", err)
	}

	reaperCtx, cancelReaper := context.WithCancel(ctx)
	defer cancelReaper()
	go registrySvc.RunReaper(reaperCtx)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gc http listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("gc grpc listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
