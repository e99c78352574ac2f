package gcassign

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/metadata"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/gcregistry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
	"github.com/nbuckles13/dark-tower-sub010/pkg/tokenmanager"
)

// Request describes a pending assignment (spec §4.7 step 3's RPC
// payload).
type Request struct {
	MeetingID    string
	MeetingCode  string
	Settings     rpc.MeetingSettings
	EstimatedParticipantsPerMeeting int64
}

// Result is returned on a successful assignment.
type Result struct {
	ControllerID         string
	Region               string
	GRPCEndpoint         string
	WebtransportEndpoint string
	Generation           int64
}

// Assigner implements the assign-before-write protocol (C7).
type Assigner struct {
	registry    *gcregistry.Service
	assignments *Store
	pool        *ChannelPool
	tokens      *tokenmanager.Reader
	maxRetries  int
	rpcTimeout  time.Duration
	logger      *slog.Logger
}

// NewAssigner builds an Assigner. tokens supplies the C1 service bearer
// attached to every outgoing AssignMeetingWithMh call (spec §6).
func NewAssigner(registry *gcregistry.Service, assignments *Store, pool *ChannelPool, tokens *tokenmanager.Reader, maxRetries int, rpcTimeout time.Duration, logger *slog.Logger) *Assigner {
	return &Assigner{
		registry:    registry,
		assignments: assignments,
		pool:        pool,
		tokens:      tokens,
		maxRetries:  maxRetries,
		rpcTimeout:  rpcTimeout,
		logger:      logger,
	}
}

// Assign runs the full assign-before-write protocol. Concurrent callers for
// the same meeting_id are not serialized against each other; convergence
// relies entirely on step 1's idempotence check (spec §4.7's ordering
// note).
func (a *Assigner) Assign(ctx context.Context, req Request) (Result, error) {
	if existing, ok, err := a.assignments.Active(ctx, req.MeetingID); err != nil {
		return Result{}, apierr.New(apierr.InternalError, err, "checking existing assignment")
	} else if ok {
		if mc, err := a.registry.GetController(ctx, existing.ControllerID); err == nil && mc.HealthStatus == gcregistry.StatusHealthy {
			telemetry.GCMCAssignmentsTotal.WithLabelValues("success").Inc()
			return Result{
				ControllerID:         existing.ControllerID,
				Region:               existing.Region,
				GRPCEndpoint:         mc.GRPCEndpoint,
				WebtransportEndpoint: mc.WebtransportEndpoint,
			}, nil
		}
	}

	excluded := map[string]bool{}
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		mcs, err := a.registry.HealthyControllers(ctx)
		if err != nil {
			return Result{}, apierr.New(apierr.InternalError, err, "listing healthy controllers")
		}
		cands := make([]candidate, 0, len(mcs))
		for _, m := range mcs {
			if excluded[m.ControllerID] || !m.HasSpareCapacity() {
				continue
			}
			cands = append(cands, candidate{ControllerID: m.ControllerID, Region: m.Region, GRPCEndpoint: m.GRPCEndpoint, LoadRatio: m.LoadRatio(gcregistry.MemberMC)})
		}
		if len(cands) == 0 {
			break
		}
		chosen := selectWeighted(cands)

		mhAssignments, err := a.selectMediaHandlers(ctx)
		if err != nil {
			return Result{}, err
		}

		resp, err := a.notify(ctx, chosen.GRPCEndpoint, req, mhAssignments)
		if err != nil {
			a.logger.Warn("assignment rpc failed", "meeting_id", req.MeetingID, "controller_id", chosen.ControllerID, "error", err)
			excluded[chosen.ControllerID] = true
			continue
		}
		if !resp.Accepted {
			telemetry.GCMCAssignmentsTotal.WithLabelValues("rejected").Inc()
			if resp.RejectionReason == rpc.RejectionDraining {
				a.logger.Info("assignment rejected: controller draining", "meeting_id", req.MeetingID, "controller_id", chosen.ControllerID)
			} else {
				a.logger.Info("assignment rejected", "meeting_id", req.MeetingID, "controller_id", chosen.ControllerID, "reason", resp.RejectionReason)
			}
			excluded[chosen.ControllerID] = true
			continue
		}

		if err := a.assignments.Insert(ctx, Assignment{MeetingID: req.MeetingID, ControllerID: chosen.ControllerID, Region: chosen.Region, AssignedAt: time.Now().UTC()}); err != nil {
			telemetry.GCMCAssignmentsTotal.WithLabelValues("error").Inc()
			return Result{}, apierr.New(apierr.InternalError, err, "persisting assignment")
		}

		telemetry.GCMCAssignmentsTotal.WithLabelValues("success").Inc()
		mc, _ := a.registry.GetController(ctx, chosen.ControllerID)
		return Result{
			ControllerID:         chosen.ControllerID,
			Region:               chosen.Region,
			GRPCEndpoint:         chosen.GRPCEndpoint,
			WebtransportEndpoint: mc.WebtransportEndpoint,
			Generation:           resp.ActualGeneration,
		}, nil
	}

	telemetry.GCMCAssignmentsTotal.WithLabelValues("unavailable").Inc()
	return Result{}, apierr.New(apierr.ServiceUnavailable, nil, "no available meeting controller for %q", req.MeetingID)
}

func (a *Assigner) selectMediaHandlers(ctx context.Context) ([]rpc.MHAssignment, error) {
	mhs, err := a.registry.HealthyHandlers(ctx)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, err, "listing healthy handlers")
	}
	if len(mhs) == 0 {
		return nil, apierr.New(apierr.ServiceUnavailable, nil, "no available media handler")
	}

	cands := make([]candidate, 0, len(mhs))
	for _, m := range mhs {
		cands = append(cands, candidate{ControllerID: m.ControllerID, Region: m.Region, GRPCEndpoint: m.GRPCEndpoint, LoadRatio: m.LoadRatio(gcregistry.MemberMH)})
	}

	primary := selectWeighted(cands)
	out := []rpc.MHAssignment{{HandlerID: primary.ControllerID, Endpoint: primary.GRPCEndpoint, Role: rpc.MHRolePrimary}}

	if len(cands) > 1 {
		backupCands := make([]candidate, 0, len(cands)-1)
		for _, c := range cands {
			if c.ControllerID != primary.ControllerID {
				backupCands = append(backupCands, c)
			}
		}
		backup := selectWeighted(backupCands)
		out = append(out, rpc.MHAssignment{HandlerID: backup.ControllerID, Endpoint: backup.GRPCEndpoint, Role: rpc.MHRoleBackup})
	}
	return out, nil
}

func (a *Assigner) notify(ctx context.Context, endpoint string, req Request, mhAssignments []rpc.MHAssignment) (*rpc.AssignMeetingResponse, error) {
	cc, err := a.pool.Get(endpoint)
	if err != nil {
		return nil, err
	}
	client := rpc.NewMeetingAcceptorClient(cc)

	callCtx, cancel := context.WithTimeout(ctx, a.rpcTimeout)
	defer cancel()
	callCtx = metadata.AppendToOutgoingContext(callCtx, "authorization", "Bearer "+a.tokens.Token())

	return client.AssignMeetingWithMh(callCtx, &rpc.AssignMeetingRequest{
		MeetingID:                       req.MeetingID,
		MeetingCode:                     req.MeetingCode,
		Settings:                        req.Settings,
		MHAssignments:                   mhAssignments,
		EstimatedParticipantsPerMeeting: req.EstimatedParticipantsPerMeeting,
	})
}
