// Package analytics records dashboard activity: sign in and sign out, page
// views, widget switches and exports. Sinks are best effort; a failing sink
// never changes the outcome of the action being recorded.
package analytics

import (
	"context"
	stderrors "errors"
	"time"
)

// EventType enumerates supported activity categories.
type EventType string

const (
	EventLoginSuccess    EventType = "auth.login.success"
	EventLoginFailure    EventType = "auth.login.failure"
	EventSignOut         EventType = "auth.signout"
	EventPageView        EventType = "dashboard.page.view"
	EventWidgetSelected  EventType = "dashboard.widget.selected"
	EventExportRequested EventType = "dashboard.export.requested"
	EventExportFailed    EventType = "dashboard.export.failed"
)

// Event captures one action.
type Event struct {
	Type       EventType
	UserID     string
	SessionID  string
	Widget     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Sink consumes events.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopSink struct{}

func (noopSink) Record(context.Context, Event) error {
	return nil
}

// Noop returns a sink that drops every event.
func Noop() Sink {
	return noopSink{}
}

// Normalize returns s, or a noop sink when s is nil.
func Normalize(s Sink) Sink {
	if s == nil {
		return noopSink{}
	}
	return s
}

type multiSink []Sink

// Multi fans an event out to every sink. All sinks see the event even when
// one fails; the errors are joined.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return noopSink{}
	}
	return out
}

func (m multiSink) Record(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
