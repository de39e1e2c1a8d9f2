/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package pollwatch is the liveness poller behind the dispatch layer's
// PollResult entry point. It combines an fsnotify watch on the PID
// directory (so a PID file removed or rewritten out from under the
// supervisor is noticed promptly) with a periodic full liveness sweep
// using gopsutil, the same portable "is this pid alive" probe the
// toUnmonitored action uses.
package pollwatch

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/Nehonix-Team/xywatchd/internal/dispatch"
	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

// Watcher drives periodic and event-triggered liveness polls.
type Watcher struct {
	core       *watch.Supervisor
	dispatcher *dispatch.Dispatcher
	interval   time.Duration
	fsw        *fsnotify.Watcher
	log        *logrus.Entry
	stop       chan struct{}
}

// New watches core.PIDDir and returns a Watcher. The directory must
// already exist; callers typically create it before constructing the
// Supervisor.
func New(core *watch.Supervisor, dispatcher *dispatch.Dispatcher, interval time.Duration, log *logrus.Entry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(core.PIDDir); err != nil {
		fsw.Close()
		return nil, err
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		core:       core,
		dispatcher: dispatcher,
		interval:   interval,
		fsw:        fsw,
		log:        log,
		stop:       make(chan struct{}),
	}, nil
}

// Run blocks until Stop is called.
func (w *Watcher) Run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.fsw.Close()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				w.pollOnce()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("pid directory watch error")
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	for _, r := range w.core.Records() {
		pid := r.PID()
		if pid == 0 {
			continue
		}
		alive, err := process.PidExists(int32(pid))
		if err != nil {
			w.log.WithError(err).WithField("pid", pid).Debug("liveness probe error during poll")
			continue
		}
		w.dispatcher.PollResult(pid, alive)
	}
}

// Stop ends Run's loop. Safe to call once.
func (w *Watcher) Stop() { close(w.stop) }
