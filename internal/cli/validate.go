package cli

import (
	"bytes"
	"context"
	"os"
	"strconv"

	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

// ErrResearchIncomplete is returned by validate when any profile fails the
// checklist, so the process exits non zero.
var ErrResearchIncomplete = errors.New("research is incomplete", errors.CategoryValidation).
	WithTextCode("RESEARCH_INCOMPLETE")

type validateOptions struct {
	checklist string
	limit     int
	json      bool
}

func newValidateCommand(app *App) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check profiles against the research checklist",
		Long: `Validate checks every stored profile for missing research fields and
values that are too short to be useful. It exits with status 1 when any
profile fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.validate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.checklist, "checklist", "", "checklist YAML file (default is the built in checklist)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of profiles to check, 0 for all")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the reports as JSON")
	return cmd
}

func (a *App) validate(ctx context.Context, opts *validateOptions) error {
	checklist := profile.DefaultChecklist()
	if opts.checklist != "" {
		b, err := os.ReadFile(opts.checklist)
		if err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "unable to read checklist").
				WithMetadata(map[string]any{"path": opts.checklist})
		}
		if checklist, err = profile.LoadChecklist(bytes.NewReader(b)); err != nil {
			return err
		}
	}

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	profiles, err := profile.NewService(profile.NewRepository(db)).List(ctx, opts.limit)
	if err != nil {
		return err
	}

	reports := make([]profile.Report, 0, len(profiles))
	for _, p := range profiles {
		reports = append(reports, checklist.Check(p))
	}

	printer := a.printer()
	if opts.json {
		printer.Print("%s", print.MaybePrettyJSON(reports))
	} else {
		a.printReports(printer, profiles, reports)
	}

	for _, report := range reports {
		if !report.Valid {
			return ErrResearchIncomplete
		}
	}
	return nil
}

func (a *App) printReports(printer *Printer, profiles []*profile.Profile, reports []profile.Report) {
	if len(reports) == 0 {
		printer.Warning("no profiles to validate")
		return
	}

	rows := make([][]string, 0, len(reports))
	for i, report := range reports {
		tier := "-"
		if profiles[i].UrgencyTier > 0 {
			tier = strconv.Itoa(profiles[i].UrgencyTier)
		}
		rows = append(rows, []string{
			report.Company,
			tier,
			strconv.Itoa(report.Filled) + "/" + strconv.Itoa(report.Total),
			strconv.Itoa(report.Percent()) + "%",
			printer.Status(report.Valid),
		})
	}

	printer.Header("Research completeness")
	if err := printer.Table([]string{"company", "tier", "filled", "complete", "valid"}, rows); err != nil {
		printer.Error("render table: %v", err)
	}

	for _, report := range reports {
		if report.Valid {
			continue
		}

		printer.Header(report.Company)
		for _, m := range report.Missing {
			printer.Error("missing %s.%s: %s", m.Section, m.Field, m.Description)
			if m.WhereToFind != "" {
				printer.Print("    where to find: %s", m.WhereToFind)
			}
		}
		for _, issue := range report.Issues {
			printer.Warning("%s.%s %s", issue.Section, issue.Field, issue.Issue)
			if issue.Standard != "" {
				printer.Print("    standard: %s", issue.Standard)
			}
			if issue.Example != "" {
				printer.Print("    example: %s", issue.Example)
			}
		}
	}

	valid := 0
	for _, report := range reports {
		if report.Valid {
			valid++
		}
	}
	if valid == len(reports) {
		printer.Success("all %d profiles complete", len(reports))
		return
	}
	printer.Error("%d of %d profiles need more research", len(reports)-valid, len(reports))
}
