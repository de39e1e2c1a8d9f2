/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package cli

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Nehonix-Team/xywatchd/internal/config"
	"github.com/Nehonix-Team/xywatchd/internal/statushttp"
	"github.com/Nehonix-Team/xywatchd/internal/supervisor"
	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

var (
	statusAddr   string
	pollInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the supervisor in the foreground",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&statusAddr, "status-addr", "", "address for the read-only status HTTP endpoint ('' disables it)")
	runCmd.Flags().DurationVar(&pollInterval, "poll-interval", 5*time.Second, "fallback liveness poll interval")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()

	pidDir, specs, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if pidDir == "" {
		pidDir = "/run/xywatchd"
	}
	if err := os.MkdirAll(pidDir, 0o755); err != nil {
		return err
	}

	core := watch.NewSupervisor(pidDir, os.Getpid(), log.WithField("component", "watch"))
	for _, spec := range specs {
		core.AddWatch(spec)
	}

	sup := supervisor.New(supervisor.Options{
		Core:            core,
		Log:             log.WithField("component", "supervisor"),
		AdminSocketPath: adminSocketPath,
		PollInterval:    pollInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if statusAddr != "" {
		statusSrv := statushttp.New(core, statushttp.Options{Addr: statusAddr}, log.WithField("component", "statushttp"))
		go func() {
			if err := statusSrv.Run(ctx); err != nil {
				log.WithError(err).Warn("status http server stopped")
			}
		}()
	}

	return sup.Run()
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
