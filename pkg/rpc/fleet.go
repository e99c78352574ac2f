package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Wire messages for the fleet registry RPCs (C6 server, C11 client).

type RegisterMemberRequest struct {
	ControllerID          string `json:"controller_id"`
	Region                string `json:"region"`
	GRPCEndpoint          string `json:"grpc_endpoint"`
	WebtransportEndpoint  string `json:"webtransport_endpoint,omitempty"`
	CapacityMeetings      int64  `json:"capacity_meetings"`
	CapacityParticipants  int64  `json:"capacity_participants"`
	BandwidthMbpsCapacity int64  `json:"bandwidth_mbps_capacity,omitempty"`
}

type HeartbeatResponse struct {
	FastHeartbeatIntervalSeconds          int32 `json:"fast_heartbeat_interval_seconds"`
	ComprehensiveHeartbeatIntervalSeconds int32 `json:"comprehensive_heartbeat_interval_seconds"`
}

// MemberKind distinguishes an MC from an MH heartbeat — the wire form of
// gcregistry.MemberType, kept here so pkg/rpc has no dependency on
// gcregistry.
type MemberKind string

const (
	MemberKindMC MemberKind = "mc"
	MemberKindMH MemberKind = "mh"
)

type FastHeartbeatRequest struct {
	Kind                MemberKind `json:"kind"`
	ControllerID        string     `json:"controller_id"`
	CurrentMeetings     int64      `json:"current_meetings"`
	CurrentParticipants int64      `json:"current_participants"`
}

type ComprehensiveHeartbeatRequest struct {
	Kind                 MemberKind `json:"kind"`
	ControllerID         string     `json:"controller_id"`
	CurrentMeetings      int64      `json:"current_meetings"`
	CurrentParticipants  int64      `json:"current_participants"`
	BandwidthMbpsCurrent int64      `json:"bandwidth_mbps_current"`
}

// FleetRegistryServer is implemented by the GC process (C6).
type FleetRegistryServer interface {
	RegisterMC(ctx context.Context, req *RegisterMemberRequest) (*HeartbeatResponse, error)
	RegisterMH(ctx context.Context, req *RegisterMemberRequest) (*HeartbeatResponse, error)
	FastHeartbeat(ctx context.Context, req *FastHeartbeatRequest) (*HeartbeatResponse, error)
	ComprehensiveHeartbeat(ctx context.Context, req *ComprehensiveHeartbeatRequest) (*HeartbeatResponse, error)
}

const FleetRegistryServiceName = "darktower.FleetRegistry"

// FleetRegistryServiceDesc is the hand-written grpc.ServiceDesc standing in
// for a generated proto service (see pkg/rpc's package doc for why).
var FleetRegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: FleetRegistryServiceName,
	HandlerType: (*FleetRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		NewUnaryMethod(FleetRegistryServiceName, "RegisterMC", func() any { return new(RegisterMemberRequest) },
			func(srv any, ctx context.Context, req any) (any, error) {
				return srv.(FleetRegistryServer).RegisterMC(ctx, req.(*RegisterMemberRequest))
			}),
		NewUnaryMethod(FleetRegistryServiceName, "RegisterMH", func() any { return new(RegisterMemberRequest) },
			func(srv any, ctx context.Context, req any) (any, error) {
				return srv.(FleetRegistryServer).RegisterMH(ctx, req.(*RegisterMemberRequest))
			}),
		NewUnaryMethod(FleetRegistryServiceName, "FastHeartbeat", func() any { return new(FastHeartbeatRequest) },
			func(srv any, ctx context.Context, req any) (any, error) {
				return srv.(FleetRegistryServer).FastHeartbeat(ctx, req.(*FastHeartbeatRequest))
			}),
		NewUnaryMethod(FleetRegistryServiceName, "ComprehensiveHeartbeat", func() any { return new(ComprehensiveHeartbeatRequest) },
			func(srv any, ctx context.Context, req any) (any, error) {
				return srv.(FleetRegistryServer).ComprehensiveHeartbeat(ctx, req.(*ComprehensiveHeartbeatRequest))
			}),
	},
	Metadata: "darktower/fleet.rpc",
}

// FleetRegistryClient calls the fleet registry RPCs over a shared
// *grpc.ClientConn. Per-endpoint channel caching lives in the caller
// (pkg/mcgcclient, pkg/gcassign).
type FleetRegistryClient struct {
	cc *grpc.ClientConn
}

func NewFleetRegistryClient(cc *grpc.ClientConn) FleetRegistryClient {
	return FleetRegistryClient{cc: cc}
}

func (c FleetRegistryClient) RegisterMC(ctx context.Context, req *RegisterMemberRequest) (*HeartbeatResponse, error) {
	resp := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, FullMethod(FleetRegistryServiceName, "RegisterMC"), req, resp, CallOptions()...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c FleetRegistryClient) RegisterMH(ctx context.Context, req *RegisterMemberRequest) (*HeartbeatResponse, error) {
	resp := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, FullMethod(FleetRegistryServiceName, "RegisterMH"), req, resp, CallOptions()...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c FleetRegistryClient) FastHeartbeat(ctx context.Context, req *FastHeartbeatRequest) (*HeartbeatResponse, error) {
	resp := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, FullMethod(FleetRegistryServiceName, "FastHeartbeat"), req, resp, CallOptions()...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c FleetRegistryClient) ComprehensiveHeartbeat(ctx context.Context, req *ComprehensiveHeartbeatRequest) (*HeartbeatResponse, error) {
	resp := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, FullMethod(FleetRegistryServiceName, "ComprehensiveHeartbeat"), req, resp, CallOptions()...); err != nil {
		return nil, err
	}
	return resp, nil
}
