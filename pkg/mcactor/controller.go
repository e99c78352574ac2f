package mcactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StatusSnapshot is the fast, atomically-read view used for GC heartbeats
// (spec §4.9's "fast path"). It never round-trips to a meeting actor.
type StatusSnapshot struct {
	CurrentMeetings     int64
	CurrentParticipants int64
	Draining            bool
}

// CreateMeetingRequest describes a meeting to create (C12 step 5).
type CreateMeetingRequest struct {
	MeetingID  string
	Generation int64
	PrimaryMH  string
	BackupMH   string
}

type controllerCmdKind int

const (
	controllerCmdCreateMeeting controllerCmdKind = iota
	controllerCmdEndMeeting
	controllerCmdGetMeeting
)

type controllerCmd struct {
	kind controllerCmdKind
	req  CreateMeetingRequest
	id   string
	resp chan any
}

// Controller is the single per-process actor: it owns the meetings map,
// capacity counters, and the draining flag.
type Controller struct {
	mailbox chan controllerCmd
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger

	capacityMeetings     int64
	capacityParticipants int64

	currentMeetings     atomic.Int64
	currentParticipants atomic.Int64
	draining            atomic.Bool

	meetings map[string]*Meeting
	wg       sync.WaitGroup

	done chan struct{}
}

// NewController builds a Controller bound to parentCtx; cancelling
// parentCtx begins hierarchical shutdown.
func NewController(parentCtx context.Context, capacityMeetings, capacityParticipants int64, logger *slog.Logger) *Controller {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Controller{
		mailbox:              make(chan controllerCmd, mailboxSize),
		ctx:                  ctx,
		cancel:               cancel,
		logger:               logger,
		capacityMeetings:     capacityMeetings,
		capacityParticipants: capacityParticipants,
		meetings:             make(map[string]*Meeting),
		done:                 make(chan struct{}),
	}
}

// Run is the controller actor's select loop. Blocks until parentCtx is
// cancelled.
func (c *Controller) Run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return
		case cmd := <-c.mailbox:
			c.handle(cmd)
		}
	}
}

func (c *Controller) handle(cmd controllerCmd) {
	switch cmd.kind {
	case controllerCmdCreateMeeting:
		if _, exists := c.meetings[cmd.req.MeetingID]; exists {
			cmd.resp <- fmt.Errorf("mcactor: meeting %q already exists", cmd.req.MeetingID)
			return
		}
		m := newMeeting(c.ctx, cmd.req.MeetingID, cmd.req.Generation, cmd.req.PrimaryMH, cmd.req.BackupMH, c.logger)
		m.SetGeneration(cmd.req.Generation)
		c.meetings[cmd.req.MeetingID] = m
		go m.Run()
		c.currentMeetings.Add(1)
		cmd.resp <- nil
	case controllerCmdEndMeeting:
		if m, ok := c.meetings[cmd.id]; ok {
			delete(c.meetings, cmd.id)
			c.currentMeetings.Add(-1)
			go m.stop()
		}
		cmd.resp <- nil
	case controllerCmdGetMeeting:
		m, ok := c.meetings[cmd.id]
		if !ok {
			cmd.resp <- (*Meeting)(nil)
			return
		}
		cmd.resp <- m
	}
}

// Status returns the cached, atomically-read counters — the fast path
// used for GC heartbeats. Never blocks on the mailbox.
func (c *Controller) Status() StatusSnapshot {
	return StatusSnapshot{
		CurrentMeetings:     c.currentMeetings.Load(),
		CurrentParticipants: c.currentParticipants.Load(),
		Draining:            c.draining.Load(),
	}
}

// AddParticipants adjusts the participant counter, e.g. on join/leave.
func (c *Controller) AddParticipants(delta int64) {
	c.currentParticipants.Add(delta)
}

// SetDraining flips the draining flag new MH/meeting assignments check
// (C12 step 2).
func (c *Controller) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// HasCapacityFor reports whether one more meeting with
// estimatedParticipants would fit within configured capacity, using
// saturating arithmetic so an overflowing estimate can never wrap
// negative and bypass the check (C12 step 3).
func (c *Controller) HasCapacityFor(estimatedParticipants int64) bool {
	if c.currentMeetings.Load() >= c.capacityMeetings {
		return false
	}
	total := saturatingAdd(c.currentParticipants.Load(), estimatedParticipants)
	return total <= c.capacityParticipants
}

func saturatingAdd(a, b int64) int64 {
	sum := a + b
	if sum < a || sum < b {
		return int64(^uint64(0) >> 1) // max int64: overflow saturates high, never wraps low
	}
	return sum
}

// CreateMeeting creates a new meeting actor. Called by C12 after its
// capacity/draining checks and fencing generation bump have already
// succeeded.
func (c *Controller) CreateMeeting(ctx context.Context, req CreateMeetingRequest) error {
	resp := make(chan any, 1)
	select {
	case c.mailbox <- controllerCmd{kind: controllerCmdCreateMeeting, req: req, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return fmt.Errorf("mcactor: controller is shutting down")
	}
	v := <-resp
	if err, ok := v.(error); ok && err != nil {
		return err
	}
	return nil
}

// EndMeeting tears down a meeting actor and decrements the meeting
// counter (used for C12's rollback path and normal meeting end).
func (c *Controller) EndMeeting(ctx context.Context, meetingID string) error {
	resp := make(chan any, 1)
	select {
	case c.mailbox <- controllerCmd{kind: controllerCmdEndMeeting, id: meetingID, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return nil
	}
	<-resp
	return nil
}

// GetMeeting returns the meeting actor handle for id, or nil if unknown.
// Callers needing authoritative counts should call Snapshot on the
// returned handle (the actual "slow path" round-trip).
func (c *Controller) GetMeeting(ctx context.Context, meetingID string) (*Meeting, error) {
	resp := make(chan any, 1)
	select {
	case c.mailbox <- controllerCmd{kind: controllerCmdGetMeeting, id: meetingID, resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, fmt.Errorf("mcactor: controller is shutting down")
	}
	v := <-resp
	m, _ := v.(*Meeting)
	return m, nil
}

// shutdown tears down every meeting actor, waiting up to
// ControllerShutdownBudget before escalating.
func (c *Controller) shutdown() {
	for _, m := range c.meetings {
		m := m
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			m.stop()
		}()
	}
	waitDone := make(chan struct{})
	go func() { c.wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(ControllerShutdownBudget):
		c.logger.Warn("controller shutdown budget exceeded, abandoning in-flight meeting closes")
	}
}
