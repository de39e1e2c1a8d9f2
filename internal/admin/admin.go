/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package admin is a minimal Unix-socket control protocol so an
// operator can observe and nudge the state machine without restarting
// the daemon. It only ever requests transitions the table already
// allows; it is not a general signal-routing surface.
package admin

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

// Server accepts line-oriented commands over a Unix domain socket:
//
//	status                 -- list every watch's name, state and pid
//	quit <name|all>         -- request the legal shutdown transition
//	restart <name>          -- nudge a restart without tearing the record down
type Server struct {
	core *watch.Supervisor
	path string
	log  *logrus.Entry
	ln   net.Listener
}

func New(core *watch.Supervisor, path string, log *logrus.Entry) *Server {
	return &Server{core: core, path: path, log: log}
}

// Run listens until Stop is called. It removes any stale socket file at
// path before binding.
func (s *Server) Run() error {
	_ = os.Remove(s.path)
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("admin socket listen %s: %w", s.path, err)
	}
	s.ln = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return err
		}
		go s.handle(conn)
	}
}

// Stop closes the listener, ending Run.
func (s *Server) Stop() {
	if s.ln != nil {
		_ = s.ln.Close()
	}
	_ = os.Remove(s.path)
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	reqID := uuid.NewString()
	log := s.log.WithField("req", reqID)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		log.WithField("cmd", cmd).Debug("admin command")

		switch cmd {
		case "status":
			s.writeStatus(conn)
		case "quit":
			if len(fields) < 2 {
				fmt.Fprintln(conn, "ERR usage: quit <name|all>")
				continue
			}
			s.doQuit(conn, fields[1])
		case "restart":
			if len(fields) < 2 {
				fmt.Fprintln(conn, "ERR usage: restart <name>")
				continue
			}
			s.doRestart(conn, fields[1])
		default:
			fmt.Fprintf(conn, "ERR unknown command %q\n", cmd)
		}
	}
}

func (s *Server) writeStatus(conn net.Conn) {
	for _, r := range s.core.Records() {
		fmt.Fprintf(conn, "%s\t%s\t%d\n", r.Spec.Name, r.State(), r.PID())
	}
	fmt.Fprintln(conn, "OK")
}

func (s *Server) doQuit(conn net.Conn, target string) {
	if target == "all" {
		for _, r := range s.core.Records() {
			r.SetState(watch.StateQuit)
			r.Wake.Post()
		}
		fmt.Fprintln(conn, "OK")
		return
	}

	r := s.core.RecordByName(target)
	if r == nil {
		fmt.Fprintf(conn, "ERR no such watch %q\n", target)
		return
	}
	r.SetState(watch.StateQuit)
	r.Wake.Post()
	fmt.Fprintln(conn, "OK")
}

// doRestart nudges a watch toward a restart without tearing its record
// down: from any non-STOPPED, non-QUIT state it posts STOPPING, whose
// action terminates the current child; the child's exit drives STOPPED
// and the auto-restart path respawns it. From STOPPED it posts
// STARTING directly since STOPPED -> STOPPING is not itself a legal
// table entry.
func (s *Server) doRestart(conn net.Conn, name string) {
	r := s.core.RecordByName(name)
	if r == nil {
		fmt.Fprintf(conn, "ERR no such watch %q\n", name)
		return
	}

	switch cur := r.State(); cur {
	case watch.StateQuit:
		fmt.Fprintln(conn, "ERR watch is quitting")
		return
	case watch.StateStopped:
		r.SetState(watch.StateStarting)
	default:
		r.SetState(watch.StateStopping)
	}
	r.Wake.Post()
	fmt.Fprintln(conn, "OK")
}
