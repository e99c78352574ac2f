package gcregistry

import (
	"context"
	"errors"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
)

// mapErr converts a gcregistry error to the apierr taxonomy so the
// boundary interceptor can translate it to the right gRPC status code —
// in particular, ErrNotRegistered must surface as NOT_FOUND so C11's
// heartbeat loop can detect it by code and re-register.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotRegistered) {
		return apierr.New(apierr.NotRegistered, err, "fleet member not registered")
	}
	return apierr.New(apierr.InternalError, err, "fleet registry operation failed")
}

// GRPCServer adapts Service to rpc.FleetRegistryServer, the hand-written
// gRPC contract MCs and MHs register against (C11).
type GRPCServer struct {
	svc *Service
}

// NewGRPCServer builds a GRPCServer.
func NewGRPCServer(svc *Service) *GRPCServer {
	return &GRPCServer{svc: svc}
}

var _ rpc.FleetRegistryServer = (*GRPCServer)(nil)

func (g *GRPCServer) RegisterMC(ctx context.Context, req *rpc.RegisterMemberRequest) (*rpc.HeartbeatResponse, error) {
	return g.register(ctx, MemberMC, req)
}

func (g *GRPCServer) RegisterMH(ctx context.Context, req *rpc.RegisterMemberRequest) (*rpc.HeartbeatResponse, error) {
	return g.register(ctx, MemberMH, req)
}

func (g *GRPCServer) register(ctx context.Context, kind MemberType, req *rpc.RegisterMemberRequest) (*rpc.HeartbeatResponse, error) {
	m := Member{
		ControllerID:          req.ControllerID,
		Region:                req.Region,
		GRPCEndpoint:          req.GRPCEndpoint,
		WebtransportEndpoint:  req.WebtransportEndpoint,
		CapacityMeetings:      req.CapacityMeetings,
		CapacityParticipants:  req.CapacityParticipants,
		BandwidthMbpsCapacity: req.BandwidthMbpsCapacity,
	}
	if err := g.svc.Register(ctx, kind, m); err != nil {
		return nil, mapErr(err)
	}
	iv := g.svc.intervals()
	return &rpc.HeartbeatResponse{
		FastHeartbeatIntervalSeconds:          int32(iv.FastHeartbeatSeconds),
		ComprehensiveHeartbeatIntervalSeconds: int32(iv.ComprehensiveHeartbeatSeconds),
	}, nil
}

func wireKind(k rpc.MemberKind) MemberType {
	if k == rpc.MemberKindMH {
		return MemberMH
	}
	return MemberMC
}

func (g *GRPCServer) FastHeartbeat(ctx context.Context, req *rpc.FastHeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	iv, err := g.svc.FastHeartbeat(ctx, wireKind(req.Kind), req.ControllerID, HeartbeatCounts{
		CurrentMeetings:     req.CurrentMeetings,
		CurrentParticipants: req.CurrentParticipants,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &rpc.HeartbeatResponse{
		FastHeartbeatIntervalSeconds:          int32(iv.FastHeartbeatSeconds),
		ComprehensiveHeartbeatIntervalSeconds: int32(iv.ComprehensiveHeartbeatSeconds),
	}, nil
}

func (g *GRPCServer) ComprehensiveHeartbeat(ctx context.Context, req *rpc.ComprehensiveHeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	iv, err := g.svc.ComprehensiveHeartbeat(ctx, wireKind(req.Kind), req.ControllerID, HeartbeatCounts{
		CurrentMeetings:     req.CurrentMeetings,
		CurrentParticipants: req.CurrentParticipants,
	}, ResourceMetrics{BandwidthMbpsCurrent: req.BandwidthMbpsCurrent})
	if err != nil {
		return nil, mapErr(err)
	}
	return &rpc.HeartbeatResponse{
		FastHeartbeatIntervalSeconds:          int32(iv.FastHeartbeatSeconds),
		ComprehensiveHeartbeatIntervalSeconds: int32(iv.ComprehensiveHeartbeatSeconds),
	}, nil
}
