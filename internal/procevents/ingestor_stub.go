//go:build !linux

/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package procevents

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Ingestor is a non-functional stand-in on platforms without the
// process connector. New always fails; the supervisor core targets
// Linux and this stub only keeps other platforms compiling for editor
// tooling and cross-compilation checks.
type Ingestor struct{}

func New(selfPID int, handler Handler, log *logrus.Entry) (*Ingestor, error) {
	return nil, errors.New("process-event ingestion requires the Linux process connector")
}

func (in *Ingestor) Run() error       { return nil }
func (in *Ingestor) RequestShutdown() {}
