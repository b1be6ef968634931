package analytics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink counts events.
type PrometheusSink struct {
	events  *prometheus.CounterVec
	views   *prometheus.CounterVec
	exports *prometheus.CounterVec
}

// NewPrometheusSink registers the dashboard counters with reg. A nil reg
// uses the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusSink{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dashboard",
				Name:      "events_total",
				Help:      "Total number of recorded dashboard events",
			},
			[]string{"type"},
		),
		views: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dashboard",
				Name:      "page_views_total",
				Help:      "Total number of dashboard page views by initial widget",
			},
			[]string{"widget"},
		),
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dashboard",
				Name:      "exports_total",
				Help:      "Total number of export requests",
			},
			[]string{"format", "status"},
		),
	}
}

// Record implements Sink.
func (s *PrometheusSink) Record(_ context.Context, event Event) error {
	s.events.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case EventPageView:
		s.views.WithLabelValues(labelOr(event.Widget, "none")).Inc()
	case EventExportRequested:
		s.exports.WithLabelValues(metadataLabel(event, "format"), "ok").Inc()
	case EventExportFailed:
		s.exports.WithLabelValues(metadataLabel(event, "format"), "error").Inc()
	}
	return nil
}

func metadataLabel(event Event, key string) string {
	if v, ok := event.Metadata[key].(string); ok {
		return labelOr(v, "unknown")
	}
	return "unknown"
}

func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
