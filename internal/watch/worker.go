/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see types.go for the full license header)
 ***************************************************************************** */

package watch

// Worker serializes state transitions for one Record: it is the sole
// reader that triggers transition actions and the sole writer of
// last-observed state. It blocks on the Record's Wake, compares the
// freshly observed State against what it last applied, and drives
// table lookups accordingly.
type Worker struct {
	record *Record
	done   chan struct{}
}

// NewWorker allocates a Worker for r and attaches it to the record. The
// Worker does not start running until Run is called on its own goroutine.
func NewWorker(r *Record) *Worker {
	w := &Worker{record: r, done: make(chan struct{})}
	r.worker = w
	return w
}

// Done is closed once Run observes StateQuit and returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run is the worker loop. It must be run on its own goroutine; Wake's
// count is seeded to 1 at construction so the first Wait returns
// immediately and drives (INIT, UNMONITORED) without any external
// stimulus.
func (w *Worker) Run() {
	defer close(w.done)

	r := w.record
	log := r.Supervisor.Log.WithField("watch", r.Spec.Name)
	last := StateInit

	for {
		r.Wake.Wait()

		current := r.State()
		if current == StateQuit {
			log.Info("worker quitting")
			return
		}
		if current == last {
			// Idempotent wake: nothing changed since the last applied
			// transition, so there is nothing to do.
			continue
		}

		action := lookup(last, current)
		switch {
		case action == nil:
			log.WithFields(map[string]interface{}{
				"from": last.String(),
				"to":   current.String(),
			}).Warn("disallowed transition, ignoring")
			// The attempt is consumed regardless: last advances even
			// though no action ran.
			last = current
		case action(r):
			last = current
		default:
			log.WithFields(map[string]interface{}{
				"from": last.String(),
				"to":   current.String(),
			}).Error("transition action failed, reverting")
			r.SetState(last)
		}
	}
}
