package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/place"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Seed published places from a YAML or JSON file",
	Long:  "Upserts places and their payment acceptances directly, bypassing review. Places without an id get one derived from name, country, city and address, so re-importing a file updates rather than duplicates.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		importFile := args[0]

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		fsys := afero.NewOsFs()
		f, err := fsys.Open(importFile)
		if err != nil {
			return eris.Wrapf(err, "import: open %s", importFile)
		}
		defer func() { _ = f.Close() }()

		doc, err := place.ParseImport(f)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		env, err := initEnv(ctx, cfg, fsys)
		if err != nil {
			return err
		}
		defer env.Close()

		pool, err := env.requirePool("import")
		if err != nil {
			return err
		}

		rep, err := place.Import(ctx, pool, env.Negotiator, doc)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("places imported",
			zap.String("file", importFile),
			zap.Int("created", rep.Created),
			zap.Int("updated", rep.Updated),
			zap.Int("payments", rep.Payments),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
