//go:build !windows

/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see types.go for the full license header)
 ***************************************************************************** */

package watch

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// noopExitEnv is set on the environment of the child process substituted
// for a missing command: a watch whose executable does not exist is
// treated as an intentional no-op, so its child exits 0 and the state
// machine observes a normal FORK/EXIT pair rather than a spawn error.
// cmd/xywatchd checks for it at the very top of main,
// before any cobra command runs, and exits immediately. Re-executing
// ourselves rather than shelling out to /bin/true keeps the substitute
// child from depending on anything outside this binary, while still
// giving the kernel a real FORK/EXIT pair for the ingestor to observe.
const (
	noopExitEnvKey = "XYWATCHD_NOOP_EXIT"
	noopExitEnv    = noopExitEnvKey + "=1"
)

// IsNoopExitChild reports whether the current process was re-executed by
// Spawn as the stand-in for a missing command. cmd/xywatchd checks this
// before doing anything else and, if true, exits 0 immediately.
func IsNoopExitChild() bool {
	return os.Getenv(noopExitEnvKey) == "1"
}

// spawnMu serializes the umask dance in Spawn: Go has no SysProcAttr
// field to set a child's umask directly, so the calling process's umask
// is flipped to 0 for the instant around fork/exec and restored right
// after. Serializing keeps two concurrent Spawns from clobbering each
// other's restore.
var spawnMu sync.Mutex

// Spawn forks a child that replaces itself with the watch's command and
// returns the child PID: umask cleared, new session, privileges dropped
// per the watch's identity, working directory set, standard streams on
// /dev/null. The child-side procedure is realized through os/exec's
// SysProcAttr rather than a literal fork/exec.
func Spawn(r *Record) (int, error) {
	spec := r.Spec
	log := r.Supervisor.Log.WithField("watch", spec.Name)

	if len(spec.Start) == 0 {
		return 0, fmt.Errorf("spawn %s: empty start command", spec.Name)
	}

	path, lookErr := exec.LookPath(spec.Start[0])
	args := spec.Start[1:]
	missing := lookErr != nil
	if missing {
		self, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("spawn %s: command %q not found and self path unresolvable: %w", spec.Name, spec.Start[0], err)
		}
		log.WithError(lookErr).Warn("command not found, substituting a no-op exit(0) child so the state machine still observes FORK/EXIT")
		path = self
		args = nil
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = workingDir(spec.Dir)
	cmd.Env = os.Environ()
	if missing {
		cmd.Env = append(cmd.Env, noopExitEnv)
	}

	devNull, err := openStdioTriple()
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", spec.Name, err)
	}
	defer devNull.closeAll()
	cmd.Stdin, cmd.Stdout, cmd.Stderr = devNull.in, devNull.out, devNull.errw

	cred, err := credentialFor(spec)
	if err != nil {
		log.WithError(err).Error("could not resolve privilege-drop identity, spawning without it")
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:     true,
		Credential: cred,
	}

	spawnMu.Lock()
	old := unix.Umask(0)
	startErr := cmd.Start()
	unix.Umask(old)
	spawnMu.Unlock()

	if startErr != nil {
		return 0, fmt.Errorf("spawn %s: %w", spec.Name, startErr)
	}
	return cmd.Process.Pid, nil
}

// workingDir resolves the child's chdir target: dir if it exists, else
// "/".
func workingDir(dir string) string {
	if dir == "" {
		return "/"
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return "/"
	}
	return dir
}

// credentialFor builds the privilege-drop identity. Gid alone installs
// a single-element supplementary group list and sets the primary group;
// Uid alongside Gid additionally seeds supplementary groups from the
// user database, by name rather than by the already-resolved uid since
// that mirrors initgroups(3); Uid alone only sets the effective user.
func credentialFor(spec *Spec) (*syscall.Credential, error) {
	if spec.Gid == nil && spec.Uid == nil {
		return nil, nil
	}

	// Start from the supervisor's own ids so that whichever of Uid/Gid is
	// not configured stays unchanged in the child.
	cred := &syscall.Credential{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid()), NoSetGroups: true}
	if spec.Gid != nil {
		cred.Gid = *spec.Gid
		cred.Groups = []uint32{*spec.Gid}
		cred.NoSetGroups = false
	}
	if spec.Uid != nil {
		cred.Uid = *spec.Uid
		if spec.Gid != nil && spec.User != "" {
			groups, err := supplementaryGroups(spec.User)
			if err != nil {
				return cred, err
			}
			cred.Groups = groups
			cred.NoSetGroups = false
		}
	}
	return cred, nil
}

func supplementaryGroups(userName string) ([]uint32, error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", userName, err)
	}
	ids, err := u.GroupIds()
	if err != nil {
		return nil, fmt.Errorf("group ids for %q: %w", userName, err)
	}
	groups := make([]uint32, 0, len(ids))
	for _, s := range ids {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			continue
		}
		groups = append(groups, uint32(n))
	}
	return groups, nil
}

// stdioTriple holds the /dev/null descriptors opened for a spawned
// child's standard streams: read-only for stdin, write-only for stdout,
// read-write for stderr. os/exec installs them in the child as
// descriptors 0, 1 and 2 respectively.
type stdioTriple struct {
	in, out, errw *os.File
}

func openStdioTriple() (*stdioTriple, error) {
	in, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s for stdin: %w", os.DevNull, err)
	}
	out, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("open %s for stdout: %w", os.DevNull, err)
	}
	errw, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		in.Close()
		out.Close()
		return nil, fmt.Errorf("open %s for stderr: %w", os.DevNull, err)
	}
	return &stdioTriple{in: in, out: out, errw: errw}, nil
}

func (t *stdioTriple) closeAll() {
	t.in.Close()
	t.out.Close()
	t.errw.Close()
}
