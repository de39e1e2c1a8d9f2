/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Nehonix-Team/xywatchd/internal/diagnostics"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "host diagnostics",
}

var diagHostCmd = &cobra.Command{
	Use:   "host",
	Short: "print a host resource snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := diagnostics.Snapshot()
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		printf("host:        %s (%s, %s)", snap.Hostname, snap.OS, snap.Architecture)
		printf("kernel:      %s", snap.KernelVersion)
		printf("cpu:         %d x %s", snap.CPUCount, snap.CPUModel)
		printf("uptime:      %s", snap.Uptime)
		printf("load avg:    %.2f %.2f %.2f", snap.LoadAverage[0], snap.LoadAverage[1], snap.LoadAverage[2])
		printf("memory:      %d / %d bytes used", snap.MemoryUsed, snap.MemoryTotal)
		for _, b := range snap.Batteries {
			printf("battery %d:  %.1f%% (%s)", b.Index, b.ChargePct, b.State)
		}
		return nil
	},
}

func init() {
	diagCmd.AddCommand(diagHostCmd)
	rootCmd.AddCommand(diagCmd)
}
