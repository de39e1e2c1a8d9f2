/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see types.go for the full license header)
 ***************************************************************************** */

package watch

import (
	"os"

	"github.com/gofrs/flock"
)

// lockPIDFile advisory-locks <pid_dir>/<name>.pid.lock for the duration
// of a single read or a single write of the PID file itself, so two supervisor
// processes sharing a pid_dir (e.g. during a supervisor restart that
// overlaps the old instance's shutdown) don't interleave a read and a
// write. The lock file is created on demand; its absence or any locking
// error degrades to "proceed unlocked" rather than blocking startup on a
// best-effort safety net.
func lockPIDFile(pidDir, name string) (unlock func(), err error) {
	if err := os.MkdirAll(pidDir, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(pidFilePath(pidDir, name) + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return func() { _ = fl.Unlock() }, nil
}
