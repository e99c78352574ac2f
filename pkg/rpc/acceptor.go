package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// MHRole distinguishes primary and backup media handler assignments
// within a single AssignMeetingWithMh call (C7, C12).
type MHRole string

const (
	MHRolePrimary MHRole = "PRIMARY"
	MHRoleBackup  MHRole = "BACKUP"
)

// RejectionReason classifies why an MC declined an assignment (C7, C12).
type RejectionReason string

const (
	RejectionNone        RejectionReason = ""
	RejectionAtCapacity  RejectionReason = "AT_CAPACITY"
	RejectionDraining    RejectionReason = "DRAINING"
	RejectionUnhealthy   RejectionReason = "UNHEALTHY"
	RejectionUnspecified RejectionReason = "UNSPECIFIED"
)

// MHAssignment is one media handler assignment carried by
// AssignMeetingWithMh.
type MHAssignment struct {
	HandlerID string `json:"handler_id"`
	Endpoint  string `json:"endpoint"`
	Role      MHRole `json:"role"`
}

// MeetingSettings carries the subset of meeting configuration the MC needs
// to create the meeting actor.
type MeetingSettings struct {
	AllowExternalParticipants bool `json:"allow_external_participants"`
	AllowGuests               bool `json:"allow_guests"`
}

// AssignMeetingRequest is the wire request for AssignMeetingWithMh (C7
// step 3, C12 step 1).
type AssignMeetingRequest struct {
	MeetingID                      string          `json:"meeting_id"`
	MeetingCode                    string           `json:"meeting_code"`
	Settings                       MeetingSettings  `json:"settings"`
	MHAssignments                  []MHAssignment   `json:"mh_assignments"`
	EstimatedParticipantsPerMeeting int64           `json:"estimated_participants_per_meeting"`
}

// AssignMeetingResponse is the wire response for AssignMeetingWithMh
// (spec §4.12: "Return {accepted, rejection_reason?, actual_generation}").
type AssignMeetingResponse struct {
	Accepted         bool            `json:"accepted"`
	RejectionReason  RejectionReason `json:"rejection_reason,omitempty"`
	ActualGeneration int64           `json:"actual_generation"`
}

// MeetingAcceptorServer is implemented by the MC process (C12).
type MeetingAcceptorServer interface {
	AssignMeetingWithMh(ctx context.Context, req *AssignMeetingRequest) (*AssignMeetingResponse, error)
}

const MeetingAcceptorServiceName = "darktower.MeetingAcceptor"

// MeetingAcceptorServiceDesc is the hand-written grpc.ServiceDesc for the
// MC-side assignment RPC.
var MeetingAcceptorServiceDesc = grpc.ServiceDesc{
	ServiceName: MeetingAcceptorServiceName,
	HandlerType: (*MeetingAcceptorServer)(nil),
	Methods: []grpc.MethodDesc{
		NewUnaryMethod(MeetingAcceptorServiceName, "AssignMeetingWithMh", func() any { return new(AssignMeetingRequest) },
			func(srv any, ctx context.Context, req any) (any, error) {
				return srv.(MeetingAcceptorServer).AssignMeetingWithMh(ctx, req.(*AssignMeetingRequest))
			}),
	},
	Metadata: "darktower/acceptor.rpc",
}

// MeetingAcceptorClient calls AssignMeetingWithMh over a shared
// *grpc.ClientConn (per-endpoint pooling lives in pkg/gcassign).
type MeetingAcceptorClient struct {
	cc *grpc.ClientConn
}

func NewMeetingAcceptorClient(cc *grpc.ClientConn) MeetingAcceptorClient {
	return MeetingAcceptorClient{cc: cc}
}

func (c MeetingAcceptorClient) AssignMeetingWithMh(ctx context.Context, req *AssignMeetingRequest) (*AssignMeetingResponse, error) {
	resp := new(AssignMeetingResponse)
	if err := c.cc.Invoke(ctx, FullMethod(MeetingAcceptorServiceName, "AssignMeetingWithMh"), req, resp, CallOptions()...); err != nil {
		return nil, err
	}
	return resp, nil
}
