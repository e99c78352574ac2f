// Package mcassign implements the MC assignment acceptor (C12): the
// gRPC-facing side of the assign-before-write protocol GC drives from
// pkg/gcassign.
package mcassign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/fencedkv"
	"github.com/nbuckles13/dark-tower-sub010/pkg/mcactor"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
)

// Acceptor implements rpc.MeetingAcceptorServer.
type Acceptor struct {
	controller *mcactor.Controller
	fenced     fencedkv.Client
	logger     *slog.Logger
}

// NewAcceptor builds an Acceptor bound to controller and the shared fenced
// KV client.
func NewAcceptor(controller *mcactor.Controller, fenced fencedkv.Client, logger *slog.Logger) *Acceptor {
	return &Acceptor{controller: controller, fenced: fenced, logger: logger}
}

// AssignMeetingWithMh runs C12's seven-step protocol.
func (a *Acceptor) AssignMeetingWithMh(ctx context.Context, req *rpc.AssignMeetingRequest) (*rpc.AssignMeetingResponse, error) {
	if reason := validate(req); reason != rpc.RejectionNone {
		telemetry.MCAssignmentAcceptTotal.WithLabelValues("invalid").Inc()
		return &rpc.AssignMeetingResponse{Accepted: false, RejectionReason: reason}, nil
	}

	if a.controller.Status().Draining {
		telemetry.MCAssignmentAcceptTotal.WithLabelValues("draining").Inc()
		return &rpc.AssignMeetingResponse{Accepted: false, RejectionReason: rpc.RejectionDraining}, nil
	}

	if !a.controller.HasCapacityFor(req.EstimatedParticipantsPerMeeting) {
		telemetry.MCAssignmentAcceptTotal.WithLabelValues("at_capacity").Inc()
		return &rpc.AssignMeetingResponse{Accepted: false, RejectionReason: rpc.RejectionAtCapacity}, nil
	}

	generation, err := a.fenced.BumpGeneration(ctx, req.MeetingID)
	if err != nil {
		telemetry.MCFencingGenerationBumpsTotal.WithLabelValues("store_unavailable").Inc()
		telemetry.MCAssignmentAcceptTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("mcassign: bumping fencing generation: %w", err)
	}
	telemetry.MCFencingGenerationBumpsTotal.WithLabelValues("ok").Inc()

	primary, backup := splitAssignments(req.MHAssignments)
	if err := a.fenced.WriteIfFresh(ctx, req.MeetingID, generation, "mh", encodeMH(primary, backup)); err != nil {
		telemetry.MCAssignmentAcceptTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("mcassign: persisting mh assignment: %w", err)
	}

	if err := a.controller.CreateMeeting(ctx, mcactor.CreateMeetingRequest{
		MeetingID:  req.MeetingID,
		Generation: generation,
		PrimaryMH:  primary,
		BackupMH:   backup,
	}); err != nil {
		a.rollback(ctx, req.MeetingID, generation)
		telemetry.MCAssignmentAcceptTotal.WithLabelValues("error").Inc()
		a.logger.Error("creating meeting actor failed, rolled back", "meeting_id", req.MeetingID, "error", err)
		return nil, fmt.Errorf("mcassign: creating meeting actor: %w", err)
	}

	telemetry.MCAssignmentAcceptTotal.WithLabelValues("accepted").Inc()
	return &rpc.AssignMeetingResponse{Accepted: true, ActualGeneration: generation}, nil
}

// rollback clears the MH assignment written in step 4 when meeting-actor
// creation in step 5 fails, per C12 step 7. The fencing generation itself
// is never rolled back: it is monotonic and a later retry simply bumps
// past it.
func (a *Acceptor) rollback(ctx context.Context, meetingID string, generation int64) {
	if err := a.fenced.WriteIfFresh(ctx, meetingID, generation, "mh", ""); err != nil {
		a.logger.Warn("rollback of mh assignment failed", "meeting_id", meetingID, "error", err)
	}
}

func validate(req *rpc.AssignMeetingRequest) rpc.RejectionReason {
	if req.MeetingID == "" {
		return rpc.RejectionUnspecified
	}
	var primaries, backups int
	for _, mh := range req.MHAssignments {
		switch mh.Role {
		case rpc.MHRolePrimary:
			primaries++
		case rpc.MHRoleBackup:
			backups++
		}
	}
	if primaries < 1 || backups > 1 {
		return rpc.RejectionUnspecified
	}
	return rpc.RejectionNone
}

func splitAssignments(assignments []rpc.MHAssignment) (primary, backup string) {
	for _, mh := range assignments {
		switch mh.Role {
		case rpc.MHRolePrimary:
			primary = mh.HandlerID
		case rpc.MHRoleBackup:
			backup = mh.HandlerID
		}
	}
	return primary, backup
}

func encodeMH(primary, backup string) string {
	return primary + "," + backup
}
