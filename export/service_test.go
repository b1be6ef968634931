package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-dashboard/profile"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newService(opts ...export.Option) *export.Service {
	opts = append([]export.Option{export.WithClock(func() time.Time { return fixedNow })}, opts...)
	return export.NewService(opts...).WithLogger(nopLogger{})
}

func sampleProfile() *profile.Profile {
	return &profile.Profile{
		UserID:                    uuid.New(),
		CompanyName:               "Acme Dental",
		FounderName:               "Robin Park",
		FounderTitle:              "CEO",
		UrgencyTier:               2,
		WebsiteProductDescription: "Scheduling software for clinics",
		Score:                     &profile.Score{Overall: 81, Grade: "A"},
		Personas:                  []profile.Persona{{Name: "Practice manager", Role: "Buyer"}},
		Recommendations:           []string{"Lead with outcomes"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    export.Format
		wantErr bool
	}{
		{in: "pdf", want: export.FormatPDF},
		{in: "CSV", want: export.FormatCSV},
		{in: "markdown", want: export.FormatMarkdown},
		{in: " md ", want: export.FormatMarkdown},
		{in: "xlsx", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := export.ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, export.IsUnsupportedFormat(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestExportPDF(t *testing.T) {
	svc := newService()

	artifact, err := svc.RequestExport(context.Background(), export.Request{
		Format:      "pdf",
		Profile:     sampleProfile(),
		Widget:      "overview",
		RequestedBy: "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, export.FormatPDF, artifact.Format)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.Equal(t, "acme-dental-overview-20250314.pdf", artifact.Filename)
	assert.True(t, bytes.HasPrefix(artifact.Body, []byte("%PDF-")))
	assert.NotEmpty(t, artifact.ID)
	assert.Equal(t, fixedNow, artifact.CreatedAt)
}

func TestRequestExportUnsupportedFormat(t *testing.T) {
	svc := newService()

	artifact, err := svc.RequestExport(context.Background(), export.Request{
		Format:  "xlsx",
		Profile: sampleProfile(),
	})

	require.Error(t, err)
	assert.Nil(t, artifact)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "UNSUPPORTED_FORMAT", richErr.TextCode)
	assert.Equal(t, goerrors.CategoryBadInput, richErr.Category)
	assert.Equal(t, 422, richErr.Code)
	assert.Equal(t, "xlsx", richErr.Metadata["format"])
}

func TestRequestExportEmptySnapshot(t *testing.T) {
	_, err := newService().RequestExport(context.Background(), export.Request{Format: "csv"})
	assert.ErrorIs(t, err, export.ErrEmptySnapshot)
}

func TestRequestExportUsesSnapshotCopy(t *testing.T) {
	p := sampleProfile()
	writer := &blockingWriter{started: make(chan export.Snapshot, 1), release: make(chan struct{})}
	svc := newService(export.WithWriter(writer))

	done := make(chan *export.Artifact)
	go func() {
		artifact, _ := svc.RequestExport(context.Background(), export.Request{Format: "csv", Profile: p})
		done <- artifact
	}()

	snapshot := <-writer.started
	p.CompanyName = "Changed after request"
	close(writer.release)

	artifact := <-done
	require.NotNil(t, artifact)
	assert.Equal(t, "Acme Dental", snapshot.Profile.CompanyName)
	assert.Equal(t, "Acme Dental", string(artifact.Body))
}

func TestRequestExportCSVOmitsMissingFields(t *testing.T) {
	p := sampleProfile()
	p.FounderTitle = ""
	p.Score = nil

	artifact, err := newService().RequestExport(context.Background(), export.Request{Format: "csv", Profile: p})
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(artifact.Body)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"section", "field", "label", "value"}, rows[0])

	fields := map[string]string{}
	for _, row := range rows[1:] {
		fields[row[1]] = row[3]
	}
	assert.Equal(t, "Robin Park", fields["founder_name"])
	assert.NotContains(t, fields, "founder_title")
	assert.NotContains(t, fields, "score_overall")
	assert.Equal(t, "2", fields["urgency_tier"])
}

func TestRequestExportMarkdown(t *testing.T) {
	p := sampleProfile()
	p.Personas = nil

	artifact, err := newService().RequestExport(context.Background(), export.Request{Format: "md", Profile: p})
	require.NoError(t, err)

	body := string(artifact.Body)
	assert.Equal(t, export.FormatMarkdown, artifact.Format)
	assert.True(t, strings.HasPrefix(body, "# Acme Dental report\n"))
	assert.Contains(t, body, "## Score")
	assert.Contains(t, body, "- **Overall score:** 81")
	assert.NotContains(t, body, "## Personas")
	assert.True(t, strings.HasSuffix(artifact.Filename, ".md"))
}

func TestRequestExportWriterError(t *testing.T) {
	svc := newService(export.WithWriter(failingWriter{}))

	_, err := svc.RequestExport(context.Background(), export.Request{Format: "csv", Profile: sampleProfile()})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "EXPORT_FAILED", richErr.TextCode)
}

func TestRequestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService().RequestExport(ctx, export.Request{Format: "csv", Profile: sampleProfile()})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryOperation, richErr.Category)
}

type blockingWriter struct {
	started chan export.Snapshot
	release chan struct{}
}

func (*blockingWriter) Format() export.Format { return export.FormatCSV }
func (*blockingWriter) ContentType() string   { return "text/plain" }
func (*blockingWriter) Extension() string     { return "txt" }

func (b *blockingWriter) Write(w io.Writer, snapshot export.Snapshot) error {
	b.started <- snapshot
	<-b.release
	_, err := io.WriteString(w, snapshot.Profile.CompanyName)
	return err
}

type failingWriter struct{}

func (failingWriter) Format() export.Format { return export.FormatCSV }
func (failingWriter) ContentType() string   { return "text/csv" }
func (failingWriter) Extension() string     { return "csv" }

func (failingWriter) Write(io.Writer, export.Snapshot) error {
	return errors.New("disk full")
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
