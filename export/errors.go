package export

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

// ErrUnsupportedFormat is returned for export formats with no writer. The
// message is safe to show to the user.
var ErrUnsupportedFormat = errors.New("export format is not supported", errors.CategoryBadInput).
	WithTextCode("UNSUPPORTED_FORMAT").
	WithCode(http.StatusUnprocessableEntity)

// ErrEmptySnapshot is returned when there is no page data to export.
var ErrEmptySnapshot = errors.New("there is no data to export yet", errors.CategoryBadInput).
	WithTextCode("EMPTY_SNAPSHOT").
	WithCode(errors.CodeBadRequest)

// ErrWriterFailed wraps a writer failure.
var ErrWriterFailed = errors.New("export failed", errors.CategoryInternal).
	WithTextCode("EXPORT_FAILED").
	WithCode(errors.CodeInternal)

func unsupported(name string) *errors.Error {
	return ErrUnsupportedFormat.Clone().WithMetadata(map[string]any{
		"format":    name,
		"supported": formatNames(),
	})
}

// IsUnsupportedFormat reports whether err is an unsupported format error.
func IsUnsupportedFormat(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == ErrUnsupportedFormat.TextCode
	}
	return false
}
