package mcactor

import (
	"context"
	"log/slog"
	"time"
)

// Transport is the raw client frame channel a connection actor drives.
// The wire protocol and media path themselves are out of scope here
// (spec §1's non-goals); this is the seam the MC's actual transport
// (WebTransport, a test fake, ...) plugs into.
type Transport interface {
	// Send writes a frame to the client. Called only from the connection
	// actor's own goroutine.
	Send(frame []byte) error
	// Close closes the underlying transport.
	Close() error
}

type connCmd struct {
	kind    connCmdKind
	frame   []byte
	doneAck chan struct{}
}

type connCmdKind int

const (
	connCmdInboundFrame connCmdKind = iota
	connCmdOutboundFrame
)

// Connection is the per-client-transport actor: it owns the raw
// transport handle, receives client frames, and forwards decoded frames
// to its parent meeting actor.
type Connection struct {
	id        string
	transport Transport
	mailbox   chan connCmd
	toMeeting chan<- meetingInboundFrame

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	done chan struct{}
}

func newConnection(parentCtx context.Context, id string, transport Transport, toMeeting chan<- meetingInboundFrame, logger *slog.Logger) *Connection {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Connection{
		id:        id,
		transport: transport,
		mailbox:   make(chan connCmd, mailboxSize),
		toMeeting: toMeeting,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Run is the connection actor's select loop. It never blocks on meeting
// delivery past its own cancellation — a full mailbox on the meeting side
// is backpressure, not a reason to hang here indefinitely.
func (c *Connection) Run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.closeTransport()
			return
		case cmd := <-c.mailbox:
			switch cmd.kind {
			case connCmdInboundFrame:
				select {
				case c.toMeeting <- meetingInboundFrame{connID: c.id, frame: cmd.frame}:
				case <-c.ctx.Done():
					c.closeTransport()
					return
				}
			case connCmdOutboundFrame:
				if err := c.transport.Send(cmd.frame); err != nil {
					c.logger.Warn("connection send failed", "conn_id", c.id, "error", err)
				}
			}
			if cmd.doneAck != nil {
				close(cmd.doneAck)
			}
		}
	}
}

func (c *Connection) closeTransport() {
	if err := c.transport.Close(); err != nil {
		c.logger.Debug("connection transport close error", "conn_id", c.id, "error", err)
	}
}

// DeliverFrame hands a raw inbound client frame to the connection actor.
// Non-blocking beyond the mailbox: if the actor is shutting down the send
// is abandoned rather than blocking the caller.
func (c *Connection) DeliverFrame(frame []byte) {
	select {
	case c.mailbox <- connCmd{kind: connCmdInboundFrame, frame: frame}:
	case <-c.ctx.Done():
	}
}

// shutdown cancels the connection and waits up to ConnectionShutdownBudget
// for its loop to observe cancellation and close the transport. Past the
// budget, cancellation is escalated: the caller moves on without further
// waiting.
func (c *Connection) shutdown() {
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(ConnectionShutdownBudget):
	}
}
