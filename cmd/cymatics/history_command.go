package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cymatics/internal/api"
	"cymatics/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent job outcomes from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			resp, err := ctx.client(false).Jobs(cmd.Context(), limit)
			if err != nil {
				return wrapClientError(err, ctx.baseURL())
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			stdout := cmd.OutOrStdout()
			renderHistory(stdout, resp, shouldColorize(stdout))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultRecentLimit, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw history payload")
	return cmd
}

func renderHistory(w io.Writer, resp *api.JobsResponse, colorize bool) {
	printSection(w, "Totals", colorize)
	fmt.Fprintln(w, renderStatusLine("Completed", statusOK, strconv.FormatInt(resp.Counts.Completed, 10), colorize))
	failedKind := statusInfo
	if resp.Counts.Failed > 0 {
		failedKind = statusError
	}
	fmt.Fprintln(w, renderStatusLine("Failed", failedKind, strconv.FormatInt(resp.Counts.Failed, 10), colorize))
	fmt.Fprintln(w)

	printSection(w, "Recent Jobs", colorize)
	if len(resp.Jobs) == 0 {
		fmt.Fprintln(w, "No jobs recorded yet")
		return
	}
	rows := make([][]string, 0, len(resp.Jobs))
	for _, entry := range resp.Jobs {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Filename,
			colorText(titleCase(entry.Outcome), outcomeKind(entry.Outcome), colorize),
			formatDuration(time.Duration(entry.DurationMS) * time.Millisecond),
			entry.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			entry.Reason,
		})
	}
	fmt.Fprint(w, renderTable(
		[]string{"ID", "File", "Outcome", "Duration", "Recorded", "Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
