//go:build windows

/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package reaper

import "github.com/sirupsen/logrus"

// Reaper is a no-op stand-in on Windows, which has no SIGCHLD/WNOHANG
// equivalent; see internal/watch's Windows Spawn stub for the rest of
// why this supervisor core targets Linux only.
type Reaper struct {
	log  *logrus.Entry
	stop chan struct{}
}

func New(log *logrus.Entry) *Reaper { return &Reaper{log: log, stop: make(chan struct{})} }

func (r *Reaper) Run() {
	r.log.Warn("child reaper is not implemented on Windows")
	<-r.stop
}

func (r *Reaper) Stop() { close(r.stop) }
