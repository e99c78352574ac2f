package mcassign

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nbuckles13/dark-tower-sub010/pkg/fencedkv"
	"github.com/nbuckles13/dark-tower-sub010/pkg/mcactor"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAcceptor(t *testing.T, capMeetings, capParticipants int64) (*Acceptor, *mcactor.Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := mcactor.NewController(ctx, capMeetings, capParticipants, discardLogger())
	go c.Run()
	return NewAcceptor(c, fencedkv.NewFake(), discardLogger()), c
}

func validRequest(meetingID string) *rpc.AssignMeetingRequest {
	return &rpc.AssignMeetingRequest{
		MeetingID: meetingID,
		MHAssignments: []rpc.MHAssignment{
			{HandlerID: "mh-1", Role: rpc.MHRolePrimary},
			{HandlerID: "mh-2", Role: rpc.MHRoleBackup},
		},
		EstimatedParticipantsPerMeeting: 3,
	}
}

func TestAssignMeetingWithMh_Accepted(t *testing.T) {
	a, c := newTestAcceptor(t, 10, 100)
	resp, err := a.AssignMeetingWithMh(context.Background(), validRequest("meeting-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("expected accepted, got rejection %q", resp.RejectionReason)
	}
	if resp.ActualGeneration == 0 {
		t.Fatalf("expected a non-zero fencing generation")
	}
	if c.Status().CurrentMeetings != 1 {
		t.Fatalf("expected 1 current meeting, got %d", c.Status().CurrentMeetings)
	}
}

func TestAssignMeetingWithMh_RejectsEmptyMeetingID(t *testing.T) {
	a, _ := newTestAcceptor(t, 10, 100)
	req := validRequest("")
	resp, err := a.AssignMeetingWithMh(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted {
		t.Fatalf("expected rejection for empty meeting id")
	}
}

func TestAssignMeetingWithMh_RejectsMissingPrimary(t *testing.T) {
	a, _ := newTestAcceptor(t, 10, 100)
	req := &rpc.AssignMeetingRequest{
		MeetingID:     "meeting-2",
		MHAssignments: []rpc.MHAssignment{{HandlerID: "mh-1", Role: rpc.MHRoleBackup}},
	}
	resp, err := a.AssignMeetingWithMh(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted {
		t.Fatalf("expected rejection with no primary mh")
	}
}

func TestAssignMeetingWithMh_RejectsTwoBackups(t *testing.T) {
	a, _ := newTestAcceptor(t, 10, 100)
	req := &rpc.AssignMeetingRequest{
		MeetingID: "meeting-3",
		MHAssignments: []rpc.MHAssignment{
			{HandlerID: "mh-1", Role: rpc.MHRolePrimary},
			{HandlerID: "mh-2", Role: rpc.MHRoleBackup},
			{HandlerID: "mh-3", Role: rpc.MHRoleBackup},
		},
	}
	resp, err := a.AssignMeetingWithMh(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted {
		t.Fatalf("expected rejection with two backups")
	}
}

func TestAssignMeetingWithMh_RejectsAtCapacity(t *testing.T) {
	a, _ := newTestAcceptor(t, 1, 100)
	if resp, err := a.AssignMeetingWithMh(context.Background(), validRequest("meeting-4")); err != nil || !resp.Accepted {
		t.Fatalf("expected first assignment to succeed: resp=%v err=%v", resp, err)
	}
	resp, err := a.AssignMeetingWithMh(context.Background(), validRequest("meeting-5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted || resp.RejectionReason != rpc.RejectionAtCapacity {
		t.Fatalf("expected AT_CAPACITY rejection, got accepted=%v reason=%q", resp.Accepted, resp.RejectionReason)
	}
}

func TestAssignMeetingWithMh_RejectsDraining(t *testing.T) {
	a, c := newTestAcceptor(t, 10, 100)
	c.SetDraining(true)
	resp, err := a.AssignMeetingWithMh(context.Background(), validRequest("meeting-6"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted || resp.RejectionReason != rpc.RejectionDraining {
		t.Fatalf("expected DRAINING rejection, got accepted=%v reason=%q", resp.Accepted, resp.RejectionReason)
	}
}

func TestAssignMeetingWithMh_DuplicateMeetingIDRollsBack(t *testing.T) {
	a, c := newTestAcceptor(t, 10, 100)
	req := validRequest("meeting-7")
	if resp, err := a.AssignMeetingWithMh(context.Background(), req); err != nil || !resp.Accepted {
		t.Fatalf("expected first assignment to succeed: resp=%v err=%v", resp, err)
	}
	// A second assignment for the same meeting_id fails at the meeting-actor
	// creation step (duplicate key); the generation bump must not leave the
	// participant counter incremented twice.
	if _, err := a.AssignMeetingWithMh(context.Background(), req); err == nil {
		t.Fatalf("expected an error on duplicate meeting id")
	}
	if c.Status().CurrentMeetings != 1 {
		t.Fatalf("expected current meetings to remain 1 after failed re-assignment, got %d", c.Status().CurrentMeetings)
	}
}
