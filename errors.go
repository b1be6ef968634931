package dashboard

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	textCodeDataFetch         = "DATA_FETCH"
	textCodeInvalidSelection  = "INVALID_WIDGET_SELECTION"
	textCodeInvalidTransition = "INVALID_PAGE_TRANSITION"
)

// ErrDataFetch is returned when the shared page data could not be loaded.
// Widgets render their empty state and the page stays usable.
var ErrDataFetch = errors.New("page data is unavailable", errors.CategoryOperation).
	WithTextCode(textCodeDataFetch).
	WithCode(errors.CodeInternal)

// ErrInvalidWidgetSelection is logged when a requested widget is unknown or
// hidden and the default was used instead.
var ErrInvalidWidgetSelection = errors.New("invalid widget selection", errors.CategoryBadInput).
	WithTextCode(textCodeInvalidSelection).
	WithCode(errors.CodeBadRequest)

// ErrInvalidTransition is returned for page operations the current phase does
// not allow, e.g. selecting a widget on an unmounted page.
var ErrInvalidTransition = errors.New("invalid page transition", errors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(errors.CodeConflict)

// ErrInvalidRegistry is returned when descriptors cannot form a registry.
var ErrInvalidRegistry = errors.New("invalid widget registry", errors.CategoryValidation).
	WithTextCode("INVALID_WIDGET_REGISTRY").
	WithCode(errors.CodeBadRequest)

// ErrNoWidgets is returned when a role can see no widget at all.
var ErrNoWidgets = errors.New("no widgets available", errors.CategoryNotFound).
	WithTextCode("NO_WIDGETS").
	WithCode(errors.CodeNotFound)

// ErrWidgetDisabled is the feature gate error for a switched off widget.
var ErrWidgetDisabled = errors.New("widget is disabled", errors.CategoryAuthz).
	WithTextCode("WIDGET_DISABLED").
	WithCode(errors.CodeForbidden)

// ErrExportRateLimited is returned when a user requests exports faster than
// the configured rate.
var ErrExportRateLimited = errors.New("too many export requests, try again shortly", errors.CategoryRateLimit).
	WithTextCode("EXPORT_RATE_LIMITED").
	WithCode(http.StatusTooManyRequests)

// IsDataFetchError reports whether err is a page data error.
func IsDataFetchError(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == textCodeDataFetch
	}
	return false
}

func dataFetchError(err error, userID string) error {
	if IsDataFetchError(err) {
		return err
	}
	return errors.Wrap(err, ErrDataFetch.Category, ErrDataFetch.Message).
		WithTextCode(ErrDataFetch.TextCode).
		WithCode(ErrDataFetch.Code).
		WithMetadata(map[string]any{"user_id": userID})
}
