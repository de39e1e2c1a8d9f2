//go:build !windows

/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package reaper collects terminated children on SIGCHLD, reaping
// non-blockingly so the kernel's process table stays clean. It
// intentionally never touches a watch's state record: that is the
// dispatch layer's job, driven by the process connector, not by wait
// status.
package reaper

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Reaped describes one child collected by a single WNOHANG sweep.
type Reaped struct {
	PID    int
	Status syscall.WaitStatus
}

// Reaper owns the SIGCHLD subscription. Run must execute on its own
// goroutine; Stop unblocks it.
type Reaper struct {
	log    *logrus.Entry
	sigCh  chan os.Signal
	reaped chan Reaped
	stop   chan struct{}
}

func New(log *logrus.Entry) *Reaper {
	return &Reaper{
		log:    log,
		sigCh:  make(chan os.Signal, 8),
		reaped: make(chan Reaped, 64),
		stop:   make(chan struct{}),
	}
}

// Run subscribes to SIGCHLD and reaps until Stop is called. The
// signal-handling path does only the WNOHANG sweep and a non-blocking
// channel send; all logging happens on the separate goroutine started
// by Run, draining the channel. Go signal delivery is already a channel
// send from the runtime, not a raw sigaction handler, so there is no
// errno to save and restore.
func (r *Reaper) Run() {
	signal.Notify(r.sigCh, syscall.SIGCHLD)
	go r.logLoop()

	for {
		select {
		case <-r.sigCh:
			r.reapAll()
		case <-r.stop:
			signal.Stop(r.sigCh)
			close(r.reaped)
			return
		}
	}
}

func (r *Reaper) reapAll() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
		select {
		case r.reaped <- Reaped{PID: pid, Status: ws}:
		default:
			// Backlog full: drop the log-worthy detail, not the reap itself
			// (Wait4 already ran above regardless of this channel).
		}
	}
}

func (r *Reaper) logLoop() {
	for rc := range r.reaped {
		r.log.WithFields(logrus.Fields{
			"pid":         rc.PID,
			"exited":      rc.Status.Exited(),
			"exit_status": rc.Status.ExitStatus(),
			"signaled":    rc.Status.Signaled(),
		}).Debug("reaped child")
	}
}

// Stop ends Run's loop. Safe to call once.
func (r *Reaper) Stop() { close(r.stop) }
