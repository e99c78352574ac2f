package mcactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// meetingInboundFrame is a frame forwarded from a connection actor to its
// parent meeting actor.
type meetingInboundFrame struct {
	connID string
	frame  []byte
}

// MeetingSnapshot is the authoritative, round-tripped view of a meeting's
// state (spec §4.9's "slow path", used for assignment decisions).
type MeetingSnapshot struct {
	ID                  string
	Generation          int64
	CurrentSequence     int64
	ParticipantCount    int
	PrimaryMH           string
	BackupMH            string
}

type meetingCmdKind int

const (
	meetingCmdSnapshot meetingCmdKind = iota
	meetingCmdAddConnection
	meetingCmdRemoveConnection
	meetingCmdBumpSequence
)

type meetingCmd struct {
	kind meetingCmdKind
	resp chan any

	connID    string
	transport Transport
}

// Meeting is the per-active-meeting actor: it owns participant
// connections, the meeting's fencing generation, and the sequence
// numbers session binding (C10) uses for replay/resume decisions.
type Meeting struct {
	id         string
	mailbox    chan meetingCmd
	framesIn   chan meetingInboundFrame
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger

	generation      atomic.Int64
	currentSequence atomic.Int64

	primaryMH string
	backupMH  string

	connections map[string]*Connection
	connWG      sync.WaitGroup

	done chan struct{}
}

func newMeeting(parentCtx context.Context, id string, generation int64, primaryMH, backupMH string, logger *slog.Logger) *Meeting {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Meeting{
		id:          id,
		mailbox:     make(chan meetingCmd, mailboxSize),
		framesIn:    make(chan meetingInboundFrame, mailboxSize),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		primaryMH:   primaryMH,
		backupMH:    backupMH,
		connections: make(map[string]*Connection),
		done:        make(chan struct{}),
	}
}

// Run is the meeting actor's cooperative select loop.
func (m *Meeting) Run() {
	defer close(m.done)
	m.generation.Store(0)
	for {
		select {
		case <-m.ctx.Done():
			m.shutdownConnections()
			return
		case frame := <-m.framesIn:
			// Control-plane frame handling (mute state, etc.) lives
			// outside scope (spec §1 non-goals); the loop only needs to
			// prove frames are consumed without blocking downstream.
			_ = frame
			m.currentSequence.Add(1)
		case cmd := <-m.mailbox:
			m.handle(cmd)
		}
	}
}

func (m *Meeting) handle(cmd meetingCmd) {
	switch cmd.kind {
	case meetingCmdSnapshot:
		cmd.resp <- MeetingSnapshot{
			ID:               m.id,
			Generation:       m.generation.Load(),
			CurrentSequence:  m.currentSequence.Load(),
			ParticipantCount: len(m.connections),
			PrimaryMH:        m.primaryMH,
			BackupMH:         m.backupMH,
		}
	case meetingCmdAddConnection:
		conn := newConnection(m.ctx, cmd.connID, cmd.transport, m.framesIn, m.logger)
		m.connections[cmd.connID] = conn
		go conn.Run()
		cmd.resp <- nil
	case meetingCmdRemoveConnection:
		if conn, ok := m.connections[cmd.connID]; ok {
			delete(m.connections, cmd.connID)
			conn.shutdown()
		}
		cmd.resp <- nil
	case meetingCmdBumpSequence:
		cmd.resp <- m.currentSequence.Add(1)
	}
}

func (m *Meeting) shutdownConnections() {
	for _, conn := range m.connections {
		conn := conn
		m.connWG.Add(1)
		go func() {
			defer m.connWG.Done()
			conn.shutdown()
		}()
	}
	waitDone := make(chan struct{})
	go func() { m.connWG.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(MeetingShutdownBudget):
		m.logger.Warn("meeting shutdown budget exceeded, abandoning in-flight connection closes", "meeting_id", m.id)
	}
}

// Snapshot round-trips to the meeting actor for an authoritative count
// (spec's "slow path").
func (m *Meeting) Snapshot(ctx context.Context) (MeetingSnapshot, error) {
	resp := make(chan any, 1)
	select {
	case m.mailbox <- meetingCmd{kind: meetingCmdSnapshot, resp: resp}:
	case <-ctx.Done():
		return MeetingSnapshot{}, ctx.Err()
	case <-m.ctx.Done():
		return MeetingSnapshot{}, fmt.Errorf("mcactor: meeting %q is shutting down", m.id)
	}
	select {
	case v := <-resp:
		return v.(MeetingSnapshot), nil
	case <-ctx.Done():
		return MeetingSnapshot{}, ctx.Err()
	}
}

// AddConnection registers a new connection actor under this meeting.
func (m *Meeting) AddConnection(ctx context.Context, connID string, transport Transport) error {
	resp := make(chan any, 1)
	select {
	case m.mailbox <- meetingCmd{kind: meetingCmdAddConnection, connID: connID, transport: transport, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return fmt.Errorf("mcactor: meeting %q is shutting down", m.id)
	}
	<-resp
	return nil
}

// RemoveConnection tears down one connection actor.
func (m *Meeting) RemoveConnection(ctx context.Context, connID string) error {
	resp := make(chan any, 1)
	select {
	case m.mailbox <- meetingCmd{kind: meetingCmdRemoveConnection, connID: connID, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return nil
	}
	<-resp
	return nil
}

// SetGeneration stores the fencing generation this meeting was created
// (or reassigned) at, for C10's generation-match check.
func (m *Meeting) SetGeneration(gen int64) {
	m.generation.Store(gen)
}

func (m *Meeting) stop() {
	m.cancel()
	select {
	case <-m.done:
	case <-time.After(MeetingShutdownBudget):
	}
}
