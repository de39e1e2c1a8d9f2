/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see types.go for the full license header)
 ***************************************************************************** */

package watch

import "sync"

// Wake is a per-record, process-local, counting wake primitive. Post
// increments the count and wakes at most one waiter; Wait blocks until
// the count is greater than zero and atomically decrements it. The
// count starts at 1 so a Worker's first Wait returns immediately and
// drives the (INIT, UNMONITORED) transition without any external
// stimulus.
//
// A condition variable is deliberately not "edge triggered": posts that
// land with no waiter blocked must still be observed by the next Wait,
// which is exactly the semantics sync.Cond plus an explicit counter give
// us and a bare channel-close/select does not.
type Wake struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// NewWake constructs a Wake with its count seeded to 1.
func NewWake() *Wake {
	w := &Wake{count: 1}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Post increments the count and wakes at most one waiter. Safe to call
// from any goroutine, any number of times; any sequence of posts with
// no intervening Wait coalesces into the last-written state value.
func (w *Wake) Post() {
	w.mu.Lock()
	w.count++
	w.mu.Unlock()
	w.cond.Signal()
}

// Wait blocks until the count is greater than zero, then decrements it.
// Go's runtime handles signal delivery without ever interrupting a
// sync.Cond.Wait with an EINTR-equivalent, so unlike the POSIX
// counterpart there is no retry-on-interruption case to surface to the
// caller.
func (w *Wake) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.count == 0 {
		w.cond.Wait()
	}
	w.count--
}
