package dashboard

import (
	"context"
	"fmt"

	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-dashboard/profile"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// DataService loads the shared page data for a user.
type DataService interface {
	Fetch(ctx context.Context, userID string) (*profile.Profile, error)
}

// DataServiceFunc adapts a function to DataService.
type DataServiceFunc func(ctx context.Context, userID string) (*profile.Profile, error)

func (f DataServiceFunc) Fetch(ctx context.Context, userID string) (*profile.Profile, error) {
	return f(ctx, userID)
}

// Exporter turns a page data snapshot into an artifact.
type Exporter interface {
	RequestExport(ctx context.Context, req export.Request) (*export.Artifact, error)
}

// Config holds the dashboard routes
type Config interface {
	GetDashboardRoute() string
	GetWidgetParam() string
	GetExportRateLimit() float64
	GetExportBurst() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] DASHBOARD "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] DASHBOARD "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] DASHBOARD "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] DASHBOARD "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
