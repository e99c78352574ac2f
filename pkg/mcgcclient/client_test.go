package mcgcclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fakeFleet struct {
	registerErr   error
	registerCalls atomic.Int64
	heartbeatErr  error
}

func (f *fakeFleet) RegisterMC(ctx context.Context, req *rpc.RegisterMemberRequest) (*rpc.HeartbeatResponse, error) {
	f.registerCalls.Add(1)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &rpc.HeartbeatResponse{FastHeartbeatIntervalSeconds: 1, ComprehensiveHeartbeatIntervalSeconds: 1}, nil
}

func (f *fakeFleet) FastHeartbeat(ctx context.Context, req *rpc.FastHeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	if f.heartbeatErr != nil {
		return nil, f.heartbeatErr
	}
	return &rpc.HeartbeatResponse{}, nil
}

func (f *fakeFleet) ComprehensiveHeartbeat(ctx context.Context, req *rpc.ComprehensiveHeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	if f.heartbeatErr != nil {
		return nil, f.heartbeatErr
	}
	return &rpc.HeartbeatResponse{}, nil
}

func TestStart_SucceedsImmediately(t *testing.T) {
	fleet := &fakeFleet{}
	c := New(fleet, staticToken("tok"), Config{ControllerID: "mc-1"}, discardLogger())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.registered.Load() {
		t.Fatalf("expected client to be marked registered")
	}
}

func TestStart_FailsAfterMaxAttempts(t *testing.T) {
	fleet := &fakeFleet{registerErr: errors.New("boom")}
	c := New(fleet, staticToken("tok"), Config{
		ControllerID:            "mc-1",
		RegistrationMaxAttempts: 2,
	}, discardLogger())
	err := c.Start(context.Background())
	if !errors.Is(err, ErrRegistrationAttemptsExceeded) {
		t.Fatalf("expected ErrRegistrationAttemptsExceeded, got %v", err)
	}
	if fleet.registerCalls.Load() != 2 {
		t.Fatalf("expected 2 registration attempts, got %d", fleet.registerCalls.Load())
	}
}

func TestStart_FailsAfterDeadline(t *testing.T) {
	fleet := &fakeFleet{registerErr: errors.New("boom")}
	c := New(fleet, staticToken("tok"), Config{
		ControllerID:                 "mc-1",
		RegistrationMaxAttempts:      1000,
		RegistrationAbsoluteDeadline: 10 * time.Millisecond,
	}, discardLogger())
	err := c.Start(context.Background())
	if !errors.Is(err, ErrRegistrationDeadlineExceeded) {
		t.Fatalf("expected ErrRegistrationDeadlineExceeded, got %v", err)
	}
}

func TestStart_RespectsContextCancellation(t *testing.T) {
	fleet := &fakeFleet{registerErr: errors.New("boom")}
	c := New(fleet, staticToken("tok"), Config{ControllerID: "mc-1"}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHandleHeartbeatErr_NotFoundMarksUnregistered(t *testing.T) {
	fleet := &fakeFleet{}
	c := New(fleet, staticToken("tok"), Config{ControllerID: "mc-1"}, discardLogger())
	c.registered.Store(true)

	stop := c.handleHeartbeatErr(status.Error(codes.NotFound, "not registered"))
	if !stop {
		t.Fatalf("expected handleHeartbeatErr to signal stop on NOT_FOUND")
	}
	if c.registered.Load() {
		t.Fatalf("expected client to be marked unregistered")
	}
}

func TestHandleHeartbeatErr_OtherErrorsDoNotStop(t *testing.T) {
	fleet := &fakeFleet{}
	c := New(fleet, staticToken("tok"), Config{ControllerID: "mc-1"}, discardLogger())
	c.registered.Store(true)

	stop := c.handleHeartbeatErr(status.Error(codes.Unavailable, "try again"))
	if stop {
		t.Fatalf("expected handleHeartbeatErr not to stop on a transient error")
	}
	if !c.registered.Load() {
		t.Fatalf("expected client to remain registered on a transient error")
	}
}
