package dashboard

import (
	"context"
	stderrors "errors"

	"github.com/goliatone/go-dashboard/profile"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Loader collapses concurrent fetches for the same user into one call to the
// underlying DataService. Every caller gets its own copy of the result.
type Loader struct {
	svc    DataService
	group  singleflight.Group
	tracer trace.Tracer
	logger Logger
	joined func(userID string)
}

var _ DataService = (*Loader)(nil)

func NewLoader(svc DataService) *Loader {
	return &Loader{
		svc:    svc,
		tracer: otel.Tracer("github.com/goliatone/go-dashboard"),
		logger: defLogger{},
	}
}

func (l *Loader) WithLogger(logger Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Fetch implements DataService.
func (l *Loader) Fetch(ctx context.Context, userID string) (*profile.Profile, error) {
	ctx, span := l.tracer.Start(ctx, "dashboard.fetch",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ch := l.group.DoChan(userID, func() (any, error) {
		return l.svc.Fetch(ctx, userID)
	})
	if l.joined != nil {
		l.joined(userID)
	}

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	// the shared call ran on another caller's context, which may be gone
	if res.Shared && isCancelled(res.Err) && ctx.Err() == nil {
		l.logger.Debug("shared fetch cancelled, retrying", "user", userID)
		res.Val, res.Err = l.svc.Fetch(ctx, userID)
		res.Shared = false
	}

	span.SetAttributes(attribute.Bool("fetch.shared", res.Shared))

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, res.Err
	}

	record, _ := res.Val.(*profile.Profile)
	if res.Shared {
		return record.Clone(), nil
	}
	return record, nil
}

func isCancelled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
