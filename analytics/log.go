package analytics

import (
	"context"

	"github.com/goliatone/go-print"
)

type Logger interface {
	Info(format string, args ...any)
}

// LogSink writes every event as a Record to a logger.
type LogSink struct {
	logger Logger
	opts   []RecordOption
}

func NewLogSink(logger Logger, opts ...RecordOption) *LogSink {
	return &LogSink{logger: logger, opts: opts}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	rec := ToRecord(event, s.opts...)
	s.logger.Info("activity %s", print.MaybePrettyJSON(rec))
	return nil
}
