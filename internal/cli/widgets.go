package cli

import (
	"context"
	"strings"

	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/widgets"
	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

func newWidgetsCommand(app *App) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "widgets",
		Short: "List registered widgets",
		Long: `List every registered widget with its layout slot and whether the given
role can see it once availability and feature flags are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.listWidgets(cmd.Context(), role)
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", string(auth.RoleMember), "role used for the visible column")
	return cmd
}

func (a *App) listWidgets(ctx context.Context, roleName string) error {
	role, ok := auth.ParseRole(roleName)
	if !ok {
		return errors.New("unknown role "+roleName, errors.CategoryBadInput).
			WithTextCode("UNKNOWN_ROLE")
	}

	registry, err := widgets.NewRegistry(dashboard.WithFeatureGate(a.cfg.Features.Gate()))
	if err != nil {
		return err
	}

	printer := a.printer()
	rows := make([][]string, 0, registry.Len())
	for _, d := range registry.All() {
		minRole := string(d.MinRole)
		if minRole == "" {
			minRole = "-"
		}
		rows = append(rows, []string{
			d.ID,
			d.Title,
			string(d.Category),
			string(dashboard.SlotFor(d)),
			minRole,
			printer.Status(d.Available),
			printer.Status(registry.IsVisible(ctx, d, role)),
			strings.Join(d.Inputs, ","),
		})
	}

	printer.Header("Widgets visible to " + string(role))
	return printer.Table(
		[]string{"id", "title", "category", "slot", "min role", "available", "visible", "inputs"},
		rows,
	)
}
