package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the degraded-intake queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued intakes",
	Long:  "Displays depth and per-entry retry state of the on-disk intake queue. Does not need the primary store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		q, err := queue.Open(ctx, cfg.Queue.Path)
		if err != nil {
			return eris.Wrap(err, "queue status")
		}
		defer func() { _ = q.Close() }()

		stats, err := q.Stats(ctx, cfg.Queue.MaxAttempts)
		if err != nil {
			return eris.Wrap(err, "queue status")
		}
		entries, err := q.List(ctx)
		if err != nil {
			return eris.Wrap(err, "queue status")
		}

		if len(entries) == 0 {
			zap.L().Info("queue is empty", zap.String("path", cfg.Queue.Path))
			return nil
		}

		formatQueueEntries(os.Stdout, stats, entries, cfg.Queue.MaxAttempts)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
	rootCmd.AddCommand(queueCmd)
}

// formatQueueEntries writes a summary line and a table of entries to out.
// Entries at or past maxAttempts are marked exhausted.
func formatQueueEntries(out io.Writer, stats queue.Stats, entries []queue.Entry, maxAttempts int) {
	oldest := "-"
	if stats.Oldest != nil {
		oldest = humanize.Time(*stats.Oldest)
	}
	_, _ = fmt.Fprintf(out, "pending: %d  exhausted: %d  oldest: %s\n\n", stats.Pending, stats.Exhausted, oldest)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tATTEMPTS\tNEXT\tQUEUED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t----\t------\t-----")
	for _, e := range entries {
		next := e.NextAttemptAt.Format("2006-01-02 15:04")
		if maxAttempts > 0 && e.Attempts >= maxAttempts {
			next = "exhausted"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.ID,
			e.Kind,
			e.Attempts,
			next,
			e.CreatedAt.Format("2006-01-02 15:04"),
			truncate(e.LastError, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
