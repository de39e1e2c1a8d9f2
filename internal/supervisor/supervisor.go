/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package supervisor wires the supervision subsystems together and
// drives their lifecycle: one Worker per watch, the event ingestor on
// the calling goroutine, the reaper, and orderly shutdown on
// SIGTERM/SIGINT.
package supervisor

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Nehonix-Team/xywatchd/internal/admin"
	"github.com/Nehonix-Team/xywatchd/internal/dispatch"
	"github.com/Nehonix-Team/xywatchd/internal/pollwatch"
	"github.com/Nehonix-Team/xywatchd/internal/procevents"
	"github.com/Nehonix-Team/xywatchd/internal/reaper"
	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

// Options configures the optional collaborators around the watch core (admin
// socket, poll-based fallback liveness watch). Only Core and Log are
// required.
type Options struct {
	Core *watch.Supervisor
	Log  *logrus.Entry

	AdminSocketPath string        // "" disables the admin control socket.
	PollInterval    time.Duration // 0 uses pollwatch's default.
}

// Supervisor is the lifecycle driver around an already-populated
// watch.Supervisor.
type Supervisor struct {
	opts       Options
	workers    []*watch.Worker
	dispatcher *dispatch.Dispatcher
	ingestor   *procevents.Ingestor
	reaper     *reaper.Reaper
	poll       *pollwatch.Watcher
	admin      *admin.Server
}

// New builds a Supervisor around an already-populated watch.Supervisor
// (watches must be added via Core.AddWatch before calling Run).
func New(opts Options) *Supervisor {
	return &Supervisor{opts: opts}
}

// Run launches one Worker per Record, starts the reaper and (if
// configured) the admin socket and poll watcher, then runs the event
// ingestor on the calling goroutine until shutdown. It blocks until
// shutdown completes.
func (s *Supervisor) Run() error {
	core := s.opts.Core
	log := s.opts.Log

	s.reaper = reaper.New(log)
	go s.reaper.Run()

	for _, r := range core.Records() {
		w := watch.NewWorker(r)
		s.workers = append(s.workers, w)
		go w.Run()
	}

	s.dispatcher = dispatch.New(core, log)

	if s.opts.AdminSocketPath != "" {
		s.admin = admin.New(core, s.opts.AdminSocketPath, log)
		go func() {
			if err := s.admin.Run(); err != nil {
				log.WithError(err).Warn("admin socket server stopped")
			}
		}()
	}

	if core.PIDDir != "" {
		pw, err := pollwatch.New(core, s.dispatcher, s.opts.PollInterval, log)
		if err != nil {
			log.WithError(err).Warn("poll watcher disabled: could not watch pid directory")
		} else {
			s.poll = pw
			go s.poll.Run()
		}
	}

	ing, err := procevents.New(core.SelfPID, s.dispatcher.Event, log)
	if err != nil {
		return fmt.Errorf("start event ingestor: %w", err)
	}
	s.ingestor = ing

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutdown signal received")
		s.ingestor.RequestShutdown()
	}()

	runErr := s.ingestor.Run()
	signal.Stop(sigCh)
	s.shutdown()
	return runErr
}

// shutdown writes QUIT to every record, posts every wake, joins every
// worker, then stops the supporting collaborators.
func (s *Supervisor) shutdown() {
	log := s.opts.Log
	log.Info("shutting down, quitting all watches")

	for _, r := range s.opts.Core.Records() {
		r.SetState(watch.StateQuit)
		r.Wake.Post()
	}
	for _, w := range s.workers {
		<-w.Done()
	}

	if s.poll != nil {
		s.poll.Stop()
	}
	if s.admin != nil {
		s.admin.Stop()
	}
	s.reaper.Stop()

	log.Info("shutdown complete")
}
