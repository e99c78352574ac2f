package mcactor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestController_CreateAndGetMeeting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewController(ctx, 10, 100, discardLogger())
	go c.Run()

	if err := c.CreateMeeting(ctx, CreateMeetingRequest{MeetingID: "m1", Generation: 1, PrimaryMH: "mh-1"}); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	status := c.Status()
	if status.CurrentMeetings != 1 {
		t.Fatalf("CurrentMeetings = %d, want 1", status.CurrentMeetings)
	}

	m, err := c.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if m == nil {
		t.Fatal("expected meeting handle, got nil")
	}

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Generation != 1 {
		t.Errorf("Generation = %d, want 1", snap.Generation)
	}
}

func TestController_CreateMeeting_Duplicate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewController(ctx, 10, 100, discardLogger())
	go c.Run()

	if err := c.CreateMeeting(ctx, CreateMeetingRequest{MeetingID: "dup"}); err != nil {
		t.Fatalf("first CreateMeeting: %v", err)
	}
	if err := c.CreateMeeting(ctx, CreateMeetingRequest{MeetingID: "dup"}); err == nil {
		t.Fatal("expected error creating duplicate meeting")
	}
}

func TestController_HasCapacityFor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewController(ctx, 2, 10, discardLogger())
	go c.Run()

	if !c.HasCapacityFor(5) {
		t.Fatal("expected capacity for first meeting")
	}

	c.AddParticipants(8)
	if c.HasCapacityFor(5) {
		t.Fatal("expected no capacity: 8+5 > 10")
	}
	if !c.HasCapacityFor(2) {
		t.Fatal("expected capacity: 8+2 <= 10")
	}
}

func TestController_HasCapacityFor_MeetingCountLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewController(ctx, 1, 1000, discardLogger())
	go c.Run()

	if err := c.CreateMeeting(ctx, CreateMeetingRequest{MeetingID: "only"}); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if c.HasCapacityFor(1) {
		t.Fatal("expected no capacity: at meeting-count limit")
	}
}

func TestSaturatingAdd_NoOverflow(t *testing.T) {
	max := int64(^uint64(0) >> 1)
	if got := saturatingAdd(max, 10); got != max {
		t.Errorf("saturatingAdd overflowed to %d, want %d", got, max)
	}
	if got := saturatingAdd(3, 4); got != 7 {
		t.Errorf("saturatingAdd(3,4) = %d, want 7", got)
	}
}

func TestController_EndMeeting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewController(ctx, 10, 100, discardLogger())
	go c.Run()

	if err := c.CreateMeeting(ctx, CreateMeetingRequest{MeetingID: "m1"}); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if err := c.EndMeeting(ctx, "m1"); err != nil {
		t.Fatalf("EndMeeting: %v", err)
	}

	status := c.Status()
	if status.CurrentMeetings != 0 {
		t.Errorf("CurrentMeetings = %d, want 0 after end", status.CurrentMeetings)
	}

	m, err := c.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if m != nil {
		t.Error("expected nil meeting handle after end")
	}
}

func TestController_ShutdownRespectsBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(ctx, 10, 100, discardLogger())
	go c.Run()

	if err := c.CreateMeeting(ctx, CreateMeetingRequest{MeetingID: "m1"}); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	start := time.Now()
	cancel()
	<-c.done
	if elapsed := time.Since(start); elapsed > ControllerShutdownBudget+time.Second {
		t.Errorf("shutdown took %v, want within budget %v", elapsed, ControllerShutdownBudget)
	}
}
