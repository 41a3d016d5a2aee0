package main

import (
	"github.com/spf13/cobra"

	"cymatics/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var once bool
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the cymatics daemon in the foreground",
		Long: "Run the cymatics daemon until SIGINT or SIGTERM.\n\n" +
			"With --once the daemon recovers orphaned files, runs one settle cycle " +
			"(two passes one poll interval apart) and exits without serving the API.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Once:        once,
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run recovery and a single settle cycle, then exit")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
