package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cymatics/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file>...",
		Short: "Upload media files to the daemon for transcription",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client(true)
			out := cmd.OutOrStdout()
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", arg, err)
				}
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", arg, err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", arg)
				}
				if !jobs.Supported(path) {
					return fmt.Errorf("%s: unsupported file type %q", arg, filepath.Ext(path))
				}
				resp, err := client.Submit(cmd.Context(), path)
				if err != nil {
					return wrapClientError(err, ctx.baseURL())
				}
				fmt.Fprintf(out, "Queued %s as %s (id %s)\n", filepath.Base(path), resp.Filename, resp.ID)
			}
			return nil
		},
	}
}
