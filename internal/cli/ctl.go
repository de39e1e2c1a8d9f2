/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "send a control command to a running xywatchd over its admin socket",
}

var ctlQuitCmd = &cobra.Command{
	Use:   "quit <name|all>",
	Short: "request the legal shutdown transition for one watch, or all of them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAdminCommand(fmt.Sprintf("quit %s", args[0]))
	},
}

var ctlRestartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "nudge a watch toward a restart without tearing its record down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAdminCommand(fmt.Sprintf("restart %s", args[0]))
	},
}

func init() {
	ctlCmd.AddCommand(ctlQuitCmd, ctlRestartCmd)
	rootCmd.AddCommand(ctlCmd)
}
