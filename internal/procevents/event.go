/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package procevents is the event ingestor: a single-threaded loop that
// subscribes to the kernel's process connector over netlink and
// multiplexes it with an internal shutdown-wake descriptor, decoding
// each message into the (pid, event) pairs the dispatch layer consumes.
package procevents

// Kind is the decoded process-event type this supervisor cares about;
// every other connector event kind is ignored.
type Kind int

const (
	KindFork Kind = iota
	KindExit
)

// Event is the (pid, event) pair dispatched to a Handler. For KindFork,
// PID is the *parent* pid, the pid the supervisor may already be
// tracking. For KindExit, PID is the exiting process's own pid, and
// ExitCode/ExitSignal are carried along.
type Event struct {
	Kind       Kind
	PID        int
	ExitCode   int
	ExitSignal int
}

// Handler processes one decoded event. Invoked synchronously from the
// ingestor's goroutine, so it must not block.
type Handler func(Event)
