package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUnloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unload",
		Short: "Release the transcription engine's memory",
		Long:  "Unload the engine now instead of waiting for the idle timeout. The call waits for a running transcription to finish.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client(true).Unload(cmd.Context())
			if err != nil {
				return wrapClientError(err, ctx.baseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Engine %s\n", status.ModelState)
			return nil
		},
	}
}
