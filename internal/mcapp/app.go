// Package mcapp composes the Meeting Controller process: the actor
// hierarchy, session binding, the GC client, and the assignment acceptor
// gRPC server.
package mcapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr/grpcerr"
	"github.com/nbuckles13/dark-tower-sub010/internal/config"
	"github.com/nbuckles13/dark-tower-sub010/internal/platform"
	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
	"github.com/nbuckles13/dark-tower-sub010/pkg/fencedkv"
	"github.com/nbuckles13/dark-tower-sub010/pkg/mcactor"
	"github.com/nbuckles13/dark-tower-sub010/pkg/mcassign"
	"github.com/nbuckles13/dark-tower-sub010/pkg/mcgcclient"
	"github.com/nbuckles13/dark-tower-sub010/pkg/mcsession"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
	"github.com/nbuckles13/dark-tower-sub010/pkg/tokenmanager"
)

// acIssuer must match the issuer name AC's signer stamps onto every token.
const acIssuer = "darktower-ac"

// Run starts the MC process and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.MCConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()
	fenced := fencedkv.New(rdb, fencedkv.DefaultMeetingTTL)

	bindingSecret, err := base64.StdEncoding.DecodeString(cfg.BindingTokenSecret)
	if err != nil {
		return fmt.Errorf("decoding MC_BINDING_TOKEN_SECRET: %w", err)
	}
	binder, err := mcsession.NewBinder(bindingSecret, time.Duration(cfg.SessionTokenTTLSeconds)*time.Second, int64(cfg.RecoveryBufferSeconds), fenced)
	if err != nil {
		return fmt.Errorf("building session binder: %w", err)
	}
	// binder is consulted by the connection handshake when a participant
	// joins or reconnects; that handshake rides the wire/media transport,
	// which is out of scope here (see mcactor.Transport).
	_ = binder

	httpClient := &http.Client{Timeout: 10 * time.Second}

	tokens, err := tokenmanager.Start(ctx, tokenmanager.Config{
		ClientID:     cfg.MCClientID,
		ClientSecret: secret.New(cfg.MCClientSecret),
		Endpoint:     cfg.ACEndpoint + "/api/v1/auth/service/token",
		Scopes:       []string{"internal:fleet-registry"},
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

	controller := mcactor.NewController(ctx, int64(cfg.CapacityMeetings), int64(cfg.CapacityParticipants), logger)
	go controller.Run()

	acceptor := mcassign.NewAcceptor(controller, fenced, logger)

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		rpc.RequireServiceToken(validator, logger),
		grpcerr.UnaryServerInterceptor(logger),
	))
	grpcSrv.RegisterService(&rpc.MeetingAcceptorServiceDesc, acceptor)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("binding grpc listener: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mc grpc listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// The acceptor's gRPC server MUST be listening before registration is
	// attempted (spec §4.11): the GC may assign a meeting the instant
	// registration succeeds.
	gcConn, err := grpc.NewClient(cfg.GCEndpoint, rpc.DialOptions()...)
	if err != nil {
		return fmt.Errorf("dialing gc: %w", err)
	}
	defer gcConn.Close()
	fleet := rpc.NewFleetRegistryClient(gcConn)

	gc := mcgcclient.New(fleet, tokens, mcgcclient.Config{
		ControllerID:                 cfg.ControllerID,
		Region:                       cfg.Region,
		GRPCEndpoint:                 cfg.GRPCAdvertiseAddr,
		WebtransportEndpoint:         cfg.WebtransportAddr,
		CapacityMeetings:             int64(cfg.CapacityMeetings),
		CapacityParticipants:         int64(cfg.CapacityParticipants),
		RegistrationMaxAttempts:      cfg.RegistrationMaxAttempts,
		RegistrationAbsoluteDeadline: time.Duration(cfg.RegistrationDeadlineSeconds) * time.Second,
	}, logger)

	if err := gc.Start(ctx); err != nil {
		return fmt.Errorf("registering with gc: %w", err)
	}

	go gc.Run(ctx, func() (currentMeetings, currentParticipants int64) {
		s := controller.Status()
		return s.CurrentMeetings, s.CurrentParticipants
	})

	select {
	case <-ctx.Done():
		grpcSrv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
