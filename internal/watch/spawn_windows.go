//go:build windows

/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see types.go for the full license header)
 ***************************************************************************** */

package watch

import "fmt"

// Spawn is unimplemented on Windows: the process-connector ingestor
// (internal/procevents) and the unix privilege-drop steps have no
// counterpart there. Building on Windows is kept possible (for editor
// tooling and cross-compilation checks) but not functional.
func Spawn(r *Record) (int, error) {
	return 0, fmt.Errorf("spawn %s: xywatchd's supervisor core is Linux-only", r.Spec.Name)
}

// IsNoopExitChild always reports false on Windows; Spawn never produces
// a no-op substitute child on this platform.
func IsNoopExitChild() bool { return false }
