/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 *
 * ACCESS RESTRICTIONS:
 * - This software is exclusively for use by Authorized Personnel of NEHONIX
 * - Intended for Internal Use only within NEHONIX operations
 * - No rights granted to unauthorized individuals or entities
 * - All modifications are works made for hire assigned to NEHONIX
 *
 * PROHIBITED ACTIVITIES:
 * - Copying, distributing, or sublicensing without written permission
 * - Reverse engineering, decompiling, or disassembling
 * - Creating derivative works without explicit authorization
 * - External use or commercial distribution outside NEHONIX
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 * For questions or permissions, contact:
 * NEHONIX Legal Department
 * Email: legal@nehonix.com
 * Website: www.nehonix.com
 ***************************************************************************** */

// Package watch implements the per-watch data model, transition table and
// state worker that together drive one supervised program through its
// lifecycle.
package watch

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the value of a watch's desired/derived lifecycle state.
type State int

const (
	StateInit State = iota
	StateUnmonitored
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateQuit
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateUnmonitored:
		return "UNMONITORED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

// numStates bounds the transition table; QUIT is handled before any table
// lookup (see Worker.Run), so it never needs a row/column of its own beyond
// this sizing.
const numStates = int(StateQuit) + 1

// Spec is the immutable description of a managed program. Resolving a
// config file into Specs happens elsewhere (internal/config); this
// package only consumes them.
type Spec struct {
	// Name is non-empty and unique within a Supervisor.
	Name string
	// Start is the ordered, non-empty argument vector; Start[0] is resolved
	// against PATH by the spawn primitive.
	Start []string
	// Dir is the optional working directory. Empty or non-existent means
	// the child chdirs to "/".
	Dir string
	// User and Group are the textual identities the watch was configured
	// with; Uid/Gid are the already-resolved numeric identities. Both are
	// kept because supplementary-group resolution, like initgroups(3),
	// needs the name, not the number.
	User  string
	Group string
	Uid   *uint32
	Gid   *uint32
	// StopCommand and LogDir are part of the declaration schema but
	// not consumed by the transition actions.
	StopCommand []string
	LogDir      string
}

// Record is the mutable, per-watch runtime bundle. Exactly one Record
// exists per Spec, owned by the Supervisor's ordered Records slice, and
// exactly one Worker drives it.
//
// Concurrency discipline: State may be written by the ingestor/dispatch
// layer, by other workers' actions, or by the Supervisor (QUIT); it is
// read only by the owning Worker, and only after Wait returns on Wake.
// Writers must write State then Post Wake; that ordering is the entire
// synchronization contract for this field. PID is written only by the
// owning Worker (inside toUnmonitored/start) and read by the dispatch
// layer; a stale read is a benign miss.
type Record struct {
	Spec *Spec

	mu    sync.Mutex
	state State
	pid   int

	Wake *Wake

	Supervisor *Supervisor

	// worker is set once, at construction, by the Supervisor.
	worker *Worker

	// restart paces the auto-restart policy driven by the stopped action.
	restart *restartGate
}

// NewRecord allocates a Record in the UNMONITORED initial state with a
// freshly seeded Wake, so the owning Worker's first Wait returns
// immediately.
func NewRecord(spec *Spec, sup *Supervisor) *Record {
	return &Record{
		Spec:       spec,
		state:      StateUnmonitored,
		Wake:       NewWake(),
		Supervisor: sup,
		restart:    newRestartGate(),
	}
}

// State returns the current desired/derived state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState writes a new desired state. Per the write/post discipline
// this must always be followed by a Wake.Post() by the caller; SetState
// itself does not post. The discipline is conventional, not
// lock-enforced: concurrent writers race to be the value the worker
// observes, which is exactly the coalescing behavior wanted. QUIT is
// terminal: once written it is never overwritten, so an action still in
// flight when shutdown is requested cannot cancel it.
func (r *Record) SetState(s State) {
	r.mu.Lock()
	if r.state != StateQuit {
		r.state = s
	}
	r.mu.Unlock()
}

// PID returns the most recently known child PID, or 0 if none is believed
// to be alive.
func (r *Record) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid
}

// SetPID is called only by the owning Worker's transition actions.
func (r *Record) SetPID(pid int) {
	r.mu.Lock()
	r.pid = pid
	r.mu.Unlock()
}

// Supervisor owns the full set of watches and their Records.
type Supervisor struct {
	Log *logrus.Entry

	SelfPID int
	PIDDir  string

	mu      sync.RWMutex
	watches map[string]*Spec
	records []*Record
}

// NewSupervisor constructs a Supervisor with no watches yet; use AddWatch
// to populate it before internal/supervisor's Run launches the workers.
func NewSupervisor(pidDir string, selfPID int, log *logrus.Entry) *Supervisor {
	return &Supervisor{
		Log:     log,
		SelfPID: selfPID,
		PIDDir:  pidDir,
		watches: make(map[string]*Spec),
	}
}

// AddWatch registers a watch and constructs its Record (without starting a
// Worker for it: that is internal/supervisor's Run, so that all records
// exist before any worker can observe its siblings).
func (s *Supervisor) AddWatch(spec *Spec) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches[spec.Name] = spec
	rec := NewRecord(spec, s)
	s.records = append(s.records, rec)
	return rec
}

// Records returns the ordered slice of state records. The slice itself
// is a copy; mutating it does not affect the Supervisor.
func (s *Supervisor) Records() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// RecordByPID is a linear scan: watch counts are small and PIDs churn
// on every restart, so a pid index would add invalidation work without
// a measurable win.
func (s *Supervisor) RecordByPID(pid int) *Record {
	if pid == 0 {
		return nil
	}
	for _, r := range s.Records() {
		if r.PID() == pid {
			return r
		}
	}
	return nil
}

// RecordByName looks up a record by its watch's name. Dispatch is
// always by PID; this exists for the admin protocol, where an operator
// addresses "restart web" rather than "restart pid 4821".
func (s *Supervisor) RecordByName(name string) *Record {
	for _, r := range s.Records() {
		if r.Spec.Name == name {
			return r
		}
	}
	return nil
}
