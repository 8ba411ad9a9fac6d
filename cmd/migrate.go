package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long:  "Applies all pending SQL migrations in lexicographic order on a single connection, then drops cached schema capabilities.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, afero.NewOsFs())
		if err != nil {
			return err
		}
		defer env.Close()

		pool, err := env.requirePool("migrate")
		if err != nil {
			return err
		}

		conn, err := pool.Acquire(ctx)
		if err != nil {
			return eris.Wrap(err, "migrate: acquire connection")
		}
		defer conn.Release()

		applied, err := db.Migrate(ctx, conn.Conn())
		if err != nil {
			return eris.Wrap(err, "migrate")
		}
		env.Negotiator.Invalidate()

		if len(applied) == 0 {
			zap.L().Info("schema is up to date")
			return nil
		}
		zap.L().Info("migrations applied", zap.Strings("files", applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
