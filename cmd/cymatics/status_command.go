package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"cymatics/internal/jobs"
)

type statusSnapshot struct {
	API     string            `json:"api"`
	Version string            `json:"version"`
	Queue   *jobs.QueueStatus `json:"queue"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's queue and engine status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client(false)
			base := ctx.baseURL()
			health, err := client.Health(cmd.Context())
			if err != nil {
				return wrapClientError(err, base)
			}
			queue, err := client.Status(cmd.Context())
			if err != nil {
				return wrapClientError(err, base)
			}

			snapshot := statusSnapshot{API: base, Version: health.Version, Queue: queue}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			stdout := cmd.OutOrStdout()
			renderStatus(stdout, snapshot, shouldColorize(stdout))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload")
	return cmd
}

func renderStatus(w io.Writer, snap statusSnapshot, colorize bool) {
	printSection(w, "Daemon", colorize)
	fmt.Fprintln(w, renderStatusLine("API", statusOK, fmt.Sprintf("%s (version %s)", snap.API, snap.Version), colorize))
	fmt.Fprintln(w)

	q := snap.Queue
	if q == nil {
		q = &jobs.QueueStatus{}
	}
	printSection(w, "Queue", colorize)
	queueKind := statusInfo
	if q.QueueLength > 0 {
		queueKind = statusWarn
	}
	fmt.Fprintln(w, renderStatusLine("Waiting", queueKind, strconv.Itoa(q.QueueLength), colorize))
	current := "idle"
	currentKind := statusInfo
	if q.CurrentFile != nil {
		current = *q.CurrentFile
		currentKind = statusOK
	}
	fmt.Fprintln(w, renderStatusLine("Transcribing", currentKind, current, colorize))
	fmt.Fprintln(w, renderStatusLine("Engine", modelStateKind(q.ModelState), titleCase(q.ModelState), colorize))
	fmt.Fprintln(w)

	printSection(w, "Recently Completed", colorize)
	if len(q.RecentCompleted) == 0 {
		fmt.Fprintln(w, "No files completed since the daemon started")
		return
	}
	rows := make([][]string, 0, len(q.RecentCompleted))
	for i, name := range q.RecentCompleted {
		rows = append(rows, []string{strconv.Itoa(i + 1), name})
	}
	fmt.Fprint(w, renderTable([]string{"#", "File"}, rows, []columnAlignment{alignRight, alignLeft}))
}
