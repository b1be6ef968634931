package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newSeedCommand(app *App) *cobra.Command {
	var truncate bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture users and profiles",
		Long: `Seed creates missing tables and loads the bundled fixture users and
profiles. A database that already holds users or profiles is left alone
unless --truncate is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runSeed(cmd.Context(), truncate)
		},
	}

	cmd.Flags().BoolVar(&truncate, "truncate", false, "delete existing rows first")
	return cmd
}

func (a *App) runSeed(ctx context.Context, truncate bool) error {
	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := a.seed(ctx, db, truncate)
	if err != nil {
		return err
	}

	a.printer().Success("seeded %s", report)
	return nil
}
