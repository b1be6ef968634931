package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	user    string
	format  string
	widget  string
	output  string
	preview bool
}

func newExportCommand(app *App) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's dashboard report",
		Long: `Export writes the profile behind a user's dashboard as pdf, csv or markdown.

Example usage:
  dashboard export --user ana --format pdf
  dashboard export --user ben@northwind.test --format csv --output -
  dashboard export --user ana --format md --preview`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.export(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "username, email or id of the user")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(export.FormatMarkdown), "pdf, csv or markdown")
	cmd.Flags().StringVarP(&opts.widget, "widget", "w", "", "widget the export is attributed to")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "file or directory to write, - for stdout (default is the generated file name)")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "render markdown in the terminal instead of writing a file")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func (a *App) export(ctx context.Context, opts *exportOptions) error {
	printer := a.printer()

	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	if opts.preview && format != export.FormatMarkdown {
		return errors.New("preview is only available for markdown exports", errors.CategoryBadInput).
			WithTextCode("PREVIEW_UNSUPPORTED")
	}

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := auth.NewUsersRepository(db).FindByIdentifier(ctx, opts.user)
	if err != nil {
		return errors.Wrap(err, errors.CategoryNotFound, "user not found").
			WithMetadata(map[string]any{"user": opts.user})
	}

	record, err := profile.NewService(profile.NewRepository(db)).
		WithLogger(a.Logger("profile")).
		Fetch(ctx, user.ID.String())
	if err != nil {
		return err
	}

	artifact, err := export.NewService().
		WithLogger(a.Logger("export")).
		RequestExport(ctx, export.Request{
			Format:      string(format),
			Profile:     record,
			Widget:      opts.widget,
			RequestedBy: user.ID.String(),
			RequestedAt: time.Now(),
		})
	if err != nil {
		return err
	}

	if opts.preview {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return err
		}
		out, err := renderer.Render(string(artifact.Body))
		if err != nil {
			return err
		}
		printer.Print("%s", out)
		return nil
	}

	if opts.output == "-" {
		_, err := a.out.Write(artifact.Body)
		return err
	}

	path := artifact.Filename
	if opts.output != "" {
		path = opts.output
		if info, err := os.Stat(opts.output); err == nil && info.IsDir() {
			path = filepath.Join(opts.output, artifact.Filename)
		}
	}

	if err := os.WriteFile(path, artifact.Body, 0o644); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write export").
			WithMetadata(map[string]any{"path": path})
	}

	printer.Success("wrote %s (%s, %d bytes)", path, artifact.Format, len(artifact.Body))
	return nil
}
