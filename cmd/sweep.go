package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/media"
)

var sweepExecute bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete media past its retention age",
	Long:  "Lists stored media older than the per-kind retention window. Gallery images of promoted submissions are kept. Nothing is deleted unless --execute is set or retention.execute is true.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sweep"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, afero.NewOsFs())
		if err != nil {
			return err
		}
		defer env.Close()

		pool, err := env.requirePool("sweep")
		if err != nil {
			return err
		}

		sweeper := media.NewSweeper(env.Objects, pool, env.Negotiator, env.Submissions).WithMetrics(env.Metrics)
		rep, err := sweeper.Sweep(ctx, sweepConfig(sweepExecute || cfg.Retention.Execute))
		if err != nil {
			return eris.Wrap(err, "sweep")
		}

		formatSweepReport(os.Stdout, rep)
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepExecute, "execute", false, "delete expired media instead of listing it")
	rootCmd.AddCommand(sweepCmd)
}

// formatSweepReport writes the candidate table and a summary line to out.
func formatSweepReport(out io.Writer, rep media.SweepReport) {
	if len(rep.Candidates) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SUBMISSION\tKIND\tMEDIA\tSIZE\tAGE")
		_, _ = fmt.Fprintln(w, "----------\t----\t-----\t----\t---")
		for _, c := range rep.Candidates {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				c.SubmissionID,
				c.Kind,
				c.MediaID,
				humanize.IBytes(uint64(c.Size)),
				formatAge(c.Age),
			)
		}
		_ = w.Flush()
	}

	verb := "deleted"
	n := rep.Deleted
	if rep.DryRun {
		verb = "would delete"
		n = len(rep.Candidates)
	}
	_, _ = fmt.Fprintf(out, "scanned %s, kept %s adopted, %s %s (%s), %d failed\n",
		humanize.Comma(int64(rep.Scanned)),
		humanize.Comma(int64(rep.Adopted)),
		verb,
		humanize.Comma(int64(n)),
		humanize.IBytes(uint64(rep.Bytes)),
		rep.Failed,
	)
	if rep.DryRun && len(rep.Candidates) > 0 {
		zap.L().Info("dry run, pass --execute to delete")
	}
}

func formatAge(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return d.Round(time.Minute).String()
}
