/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package dispatch maps a pid observed either from a process-connector
// event or from a periodic liveness poll to the owning watch's Record,
// writes the derived state, and posts the Record's wake.
package dispatch

import (
	"fmt"
	"time"

	ecache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/sirupsen/logrus"

	"github.com/Nehonix-Team/xywatchd/internal/procevents"
	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

// dedupeWindow bounds how long a (pid, kind) pair is remembered to
// collapse a burst of duplicate netlink deliveries into a single wake
// post, rather than relying on the kernel never redelivering one.
const dedupeWindow = 2 * time.Second

// Dispatcher holds the small amount of state dispatch needs beyond the
// Supervisor itself: the dedupe cache for event bursts.
type Dispatcher struct {
	sup  *watch.Supervisor
	seen ecache.Cache[string, struct{}]
	log  *logrus.Entry
}

// New constructs a Dispatcher bound to sup.
func New(sup *watch.Supervisor, log *logrus.Entry) *Dispatcher {
	seen := ecache.NewCache[string, struct{}]().WithTTL(dedupeWindow)
	return &Dispatcher{sup: sup, seen: seen, log: log}
}

// Event consumes one decoded process-connector event. EXIT writes
// STOPPED for the matching record unless it is already STOPPED or
// QUIT; FORK is treated as a liveness
// confirmation only when the affected (parent) pid is already the
// record's own tracked pid, i.e. we are observing our own child being
// born, not merely a related process.
func (d *Dispatcher) Event(ev procevents.Event) {
	if d.seen != nil {
		key := fmt.Sprintf("%d:%d", ev.Kind, ev.PID)
		if _, ok := d.seen.Get(key); ok {
			return
		}
		d.seen.Set(key, struct{}{}, 0)
	}

	r := d.sup.RecordByPID(ev.PID)
	if r == nil {
		return
	}

	switch ev.Kind {
	case procevents.KindExit:
		switch r.State() {
		case watch.StateStopped, watch.StateQuit:
		default:
			r.SetState(watch.StateStopped)
			r.Wake.Post()
		}
	case procevents.KindFork:
		if r.PID() != ev.PID {
			return
		}
		switch r.State() {
		case watch.StateRunning, watch.StateStopping, watch.StateQuit:
			// Already confirmed, a termination is in flight, or the
			// record is quitting; a liveness confirmation must not
			// cancel either.
		default:
			r.SetState(watch.StateRunning)
			r.Wake.Post()
		}
	}
}

// PollResult consumes a periodic liveness probe result. Matching is by
// Record.PID == pid, linear scan, write-then-post only on an actual
// change so a repeated poll with no change is a no-op.
func (d *Dispatcher) PollResult(pid int, running bool) {
	r := d.sup.RecordByPID(pid)
	if r == nil {
		return
	}
	if running {
		switch r.State() {
		case watch.StateRunning, watch.StateStopping, watch.StateQuit:
			// A still-live child during STOPPING is expected while its
			// termination is in flight; confirming it RUNNING would
			// cancel the stop.
		default:
			r.SetState(watch.StateRunning)
			r.Wake.Post()
		}
	} else {
		switch r.State() {
		case watch.StateStopped, watch.StateQuit:
		default:
			r.SetState(watch.StateStopped)
			r.Wake.Post()
		}
	}
}
