package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Request asks for the given page data in one format.
type Request struct {
	Format      string
	Profile     *profile.Profile
	Widget      string
	RequestedBy string
	RequestedAt time.Time
}

// Artifact is a generated export ready for download.
type Artifact struct {
	ID          string
	Format      Format
	Filename    string
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Service turns page data snapshots into downloadable artifacts.
type Service struct {
	writers map[Format]Writer
	tracer  trace.Tracer
	now     func() time.Time
	logger  Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWriter registers or replaces the writer for its format.
func WithWriter(w Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.writers[w.Format()] = w
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService returns a service with pdf, csv and markdown writers.
func NewService(opts ...Option) *Service {
	s := &Service{
		writers: map[Format]Writer{
			FormatPDF:      PDFWriter{},
			FormatCSV:      CSVWriter{},
			FormatMarkdown: MarkdownWriter{},
		},
		tracer: otel.Tracer("github.com/goliatone/go-dashboard/export"),
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Formats returns the formats this service can write.
func (s *Service) Formats() []Format {
	var out []Format
	for _, f := range SupportedFormats() {
		if _, ok := s.writers[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// RequestExport serializes a copy of req.Profile. The caller's profile is
// never handed to a writer, so later page updates cannot leak into an export
// that is in progress. Unknown formats fail with ErrUnsupportedFormat before
// any output is produced.
func (s *Service) RequestExport(ctx context.Context, req Request) (*Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "export.request",
		trace.WithAttributes(attribute.String("export.format", req.Format)),
	)
	defer span.End()

	format, err := ParseFormat(req.Format)
	if err != nil {
		span.SetStatus(codes.Error, "unsupported format")
		s.logger.Info("export rejected", "format", req.Format, "user", req.RequestedBy)
		return nil, err
	}

	writer, ok := s.writers[format]
	if !ok {
		return nil, unsupported(req.Format)
	}

	if req.Profile == nil {
		return nil, ErrEmptySnapshot
	}

	requestedAt := req.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = s.now()
	}

	snapshot := Snapshot{
		Profile:     req.Profile.Clone(),
		Widget:      req.Widget,
		RequestedBy: req.RequestedBy,
		RequestedAt: requestedAt,
	}

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.CategoryOperation, "export cancelled")
	default:
	}

	var buf bytes.Buffer
	if err := writer.Write(&buf, snapshot); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "writer failed")
		return nil, errors.Wrap(err, ErrWriterFailed.Category, ErrWriterFailed.Message).
			WithTextCode(ErrWriterFailed.TextCode).
			WithCode(ErrWriterFailed.Code).
			WithMetadata(map[string]any{"format": string(format)})
	}

	artifact := &Artifact{
		ID:          artifactID(req.RequestedBy, requestedAt),
		Format:      format,
		Filename:    filename(snapshot, writer.Extension()),
		ContentType: writer.ContentType(),
		Body:        buf.Bytes(),
		CreatedAt:   requestedAt,
	}

	span.SetAttributes(
		attribute.String("export.id", artifact.ID),
		attribute.Int("export.size", len(artifact.Body)),
	)

	s.logger.Debug("export generated", "id", artifact.ID, "format", format, "size", len(artifact.Body))

	return artifact, nil
}

func artifactID(user string, at time.Time) string {
	seed := fmt.Sprintf("%s:%d", user, at.UnixNano())
	id, err := hashid.NewUUID(seed)
	if err != nil {
		return fmt.Sprintf("%x", at.UnixNano())
	}
	return id.String()
}

func filename(snapshot Snapshot, ext string) string {
	base := "report"
	if snapshot.Profile != nil && snapshot.Profile.CompanyName != "" {
		base = slug(snapshot.Profile.CompanyName)
	}
	if snapshot.Widget != "" {
		base += "-" + slug(snapshot.Widget)
	}
	return fmt.Sprintf("%s-%s.%s", base, snapshot.RequestedAt.UTC().Format("20060102"), ext)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
