/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see internal/watch/types.go for the full license header)
 ***************************************************************************** */

package main

import (
	"fmt"
	"os"

	"github.com/Nehonix-Team/xywatchd/internal/cli"
	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

func main() {
	// Spawn substitutes a re-exec of this same binary for a watch whose
	// command is missing. That child's entire job is to exit 0
	// immediately, before cobra ever sees the command line.
	if watch.IsNoopExitChild() {
		os.Exit(0)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "xywatchd: %v\n", err)
		os.Exit(1)
	}
}
