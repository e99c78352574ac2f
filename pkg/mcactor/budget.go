// Package mcactor implements the MC's actor hierarchy (C9): one
// controller actor per process, one meeting actor per active meeting,
// and one connection actor per client transport. Each actor owns a
// single message-receive loop built as a cooperative select between a
// bounded inbound mailbox and a cancellation token; blocking work is
// always moved to a spawned goroutine whose result is received, never
// awaited inline inside the loop.
package mcactor

import "time"

// Shutdown budgets, top-down (spec §4.9): a parent waits this long for
// each child layer to finish closing before escalating cancellation and
// aborting in-flight work.
const (
	ConnectionShutdownBudget = 50 * time.Millisecond
	MeetingShutdownBudget    = 5 * time.Second
	ControllerShutdownBudget = 30 * time.Second
)

// mailboxSize bounds every actor's inbound command channel. Senders that
// would block past their own context's deadline see a timeout rather than
// an unbounded queue.
const mailboxSize = 256
