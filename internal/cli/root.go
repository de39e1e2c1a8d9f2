/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package cli is the cobra command tree for xywatchd: a shared root
// command with persistent flags, one file per subcommand.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath      string
	verbose         bool
	jsonOutput      bool
	adminSocketPath string
)

var rootCmd = &cobra.Command{
	Use:           "xywatchd",
	Short:         "xywatchd, a process supervisor",
	Long:          "xywatchd spawns and supervises declared watches, driving each through a state machine keyed off kernel process events.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the command tree; cmd/xywatchd/main.go calls this (after
// its no-op-child check) and translates its error into an exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/xywatchd/watches.yaml", "path to the watch declarations file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON where applicable")
	rootCmd.PersistentFlags().StringVar(&adminSocketPath, "admin-socket", "/run/xywatchd/admin.sock", "path of the admin control socket ('' disables it)")
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}
