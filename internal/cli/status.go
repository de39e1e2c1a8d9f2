/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package cli

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show every watch's state and pid",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAdminCommand("status")
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// sendAdminCommand is the shared client side of internal/admin's
// line protocol: connect, write one command line, print every reply
// line up to and including the terminal "OK"/"ERR ..." line.
func sendAdminCommand(line string) error {
	conn, err := net.Dial("unix", adminSocketPath)
	if err != nil {
		return fmt.Errorf("connect to admin socket %s: %w", adminSocketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, line); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		text := scanner.Text()
		switch {
		case text == "OK":
			green.Println(text)
			return nil
		case strings.HasPrefix(text, "ERR"):
			red.Println(text)
			return fmt.Errorf("%s", text)
		default:
			printf("%s", text)
		}
	}
	return scanner.Err()
}
