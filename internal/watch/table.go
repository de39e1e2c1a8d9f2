/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see types.go for the full license header)
 ***************************************************************************** */

package watch

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Action is a transition function: given the record the transition
// applies to, perform whatever side effect the (from, to) pair implies
// and report success. A false return causes the Worker to restore the
// prior last-observed state.
type Action func(r *Record) bool

// table is the static (from, to) transition map. Entries with no Action
// are disallowed transitions; self-transitions and unlisted cells are
// never populated, keeping the legality matrix as data rather than as
// nested conditionals.
var table [numStates][numStates]Action

func init() {
	table[StateInit][StateUnmonitored] = toUnmonitored

	table[StateUnmonitored][StateStarting] = start
	table[StateUnmonitored][StateRunning] = running
	table[StateUnmonitored][StateStopping] = stop
	table[StateUnmonitored][StateStopped] = stopped

	table[StateStarting][StateUnmonitored] = toUnmonitored
	table[StateStarting][StateRunning] = running
	table[StateStarting][StateStopping] = stop
	table[StateStarting][StateStopped] = stopped

	table[StateRunning][StateUnmonitored] = toUnmonitored
	table[StateRunning][StateStopping] = stop
	table[StateRunning][StateStopped] = stopped

	table[StateStopping][StateUnmonitored] = toUnmonitored
	table[StateStopping][StateStopped] = stopped

	table[StateStopped][StateUnmonitored] = toUnmonitored
	table[StateStopped][StateStarting] = start
}

// lookup returns the Action for (from, to), or nil if the transition is
// disallowed. QUIT is handled by the Worker before this is ever called.
func lookup(from, to State) Action {
	if from < 0 || from >= State(numStates) || to < 0 || to >= State(numStates) {
		return nil
	}
	return table[from][to]
}

// toUnmonitored re-derives reality for an unmonitored record: if it has
// no known live PID, try to recover one from the PID file; probe
// liveness with gopsutil's portable PidExists (equivalent to "signal
// 0"); write RUNNING or STOPPED accordingly. It always resolves to
// exactly one of those two states and never leaves the record at
// UNMONITORED.
func toUnmonitored(r *Record) bool {
	log := r.Supervisor.Log.WithField("watch", r.Spec.Name)

	pid := r.PID()
	if pid == 0 {
		if readPID, err := ReadPIDFile(r.Supervisor.PIDDir, r.Spec.Name); err == nil {
			pid = readPID
		}
	}

	alive := false
	if pid != 0 {
		if ok, err := process.PidExists(int32(pid)); err == nil {
			alive = ok
		} else {
			log.WithError(err).Debug("liveness probe failed, treating pid as dead")
		}
	}

	if alive {
		r.SetPID(pid)
		r.SetState(StateRunning)
	} else {
		r.SetPID(0)
		r.SetState(StateStopped)
	}
	r.Wake.Post()
	return true
}

// start invokes the spawn primitive and records the resulting PID. It
// does not itself change State; the next observed FORK/EXIT event, or
// poll result, drives the record onward.
func start(r *Record) bool {
	log := r.Supervisor.Log.WithField("watch", r.Spec.Name)

	pid, err := Spawn(r)
	if err != nil {
		log.WithError(err).Error("spawn failed")
		return false
	}
	r.SetPID(pid)
	WritePIDFile(r.Supervisor.PIDDir, r.Spec.Name, pid)
	log.WithField("pid", pid).Info("spawned")
	return true
}

// running marks the watch healthy. It also closes out any failure
// streak: a watch observed RUNNING restarts its backoff curve from
// scratch, so restart pacing reflects consecutive failures, not
// lifetime ones.
func running(r *Record) bool {
	r.restart.Reset()
	return true
}

// stop terminates the current child so the record can progress to
// STOPPED. Termination is asynchronous: the child's EXIT event (or a
// liveness poll) drives the STOPPED write once the process is gone.
// With no live child there is nothing to wait for, so the record
// resolves to STOPPED immediately.
func stop(r *Record) bool {
	log := r.Supervisor.Log.WithField("watch", r.Spec.Name)

	if pid := r.PID(); pid != 0 {
		p, err := process.NewProcess(int32(pid))
		if err == nil {
			err = p.Terminate()
		}
		if err == nil {
			log.WithField("pid", pid).Info("terminating child")
			return true
		}
		log.WithError(err).WithField("pid", pid).Warn("terminate failed, treating child as already gone")
	}
	r.SetState(StateStopped)
	r.Wake.Post()
	return true
}

// stopped is the auto-restart policy: whenever a watch is observed
// stopped, a restart is scheduled by posting STARTING as a follow-on
// wake. Restart pacing (backoff + circuit breaker) lives in restart.go
// and is consulted here so a crash-looping watch doesn't spin the
// supervisor.
func stopped(r *Record) bool {
	log := r.Supervisor.Log.WithField("watch", r.Spec.Name)

	gate := gateFor(r)
	if !gate.Allow() {
		log.Warn("auto-restart suppressed by circuit breaker, watch will remain STOPPED")
		return true
	}

	delay := gate.NextBackOff()
	if delay <= 0 {
		r.SetState(StateStarting)
		r.Wake.Post()
		return true
	}

	log.WithField("delay", delay).Info("scheduling restart after backoff")
	go func() {
		<-time.After(delay)
		// Only re-arm if nothing else has moved the record on in the
		// meantime (e.g. an operator-issued quit).
		if r.State() == StateStopped {
			r.SetState(StateStarting)
			r.Wake.Post()
		}
	}()
	return true
}

// ReadPIDFile reads the decimal PID recorded for a watch. Absent file
// means "no prior PID".
func ReadPIDFile(pidDir, name string) (int, error) {
	unlock, err := lockPIDFile(pidDir, name)
	if err == nil {
		defer unlock()
	}
	data, err := os.ReadFile(pidFilePath(pidDir, name))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// WritePIDFile records the most recently spawned child's PID under
// <pid_dir>/<name>.pid. Write failures are not fatal: toUnmonitored
// simply won't be able to adopt the process on a later restart of the
// supervisor itself, which is a degraded-but-safe outcome.
func WritePIDFile(pidDir, name string, pid int) {
	unlock, err := lockPIDFile(pidDir, name)
	if err == nil {
		defer unlock()
	}
	_ = os.WriteFile(pidFilePath(pidDir, name), []byte(strconv.Itoa(pid)), 0o644)
}

func pidFilePath(pidDir, name string) string {
	return pidDir + string(os.PathSeparator) + name + ".pid"
}
