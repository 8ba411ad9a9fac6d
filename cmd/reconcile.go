package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/intake"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Replay queued intakes into the primary store once",
	Long:  "Drains the on-disk intake queue a single time. Entries that fail stay queued with backoff; the server's background reconciler does the same on an interval.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, afero.NewOsFs())
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := env.requirePool("reconcile"); err != nil {
			return err
		}
		if env.Queue == nil {
			return eris.Errorf("reconcile: queue %q could not be opened", cfg.Queue.Path)
		}

		rec := intake.NewReconciler(reconcileConfig(cfg), env.Queue, env.Submissions, env.Guard, env.Metrics)
		rep, err := rec.Drain(ctx)
		if err != nil {
			return eris.Wrap(err, "reconcile")
		}

		zap.L().Info("reconcile complete",
			zap.Int("replayed", rep.Replayed),
			zap.Int("failed", rep.Failed),
			zap.Bool("stopped", rep.Stopped),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
