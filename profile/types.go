package profile

import (
	stderrors "errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Validate will run validation rules
func (p *Profile) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(p,
			validation.Field(&p.UserID, validation.By(requireOwner)),
			validation.Field(&p.CompanyName, validation.Required, validation.Length(1, 200)),
			validation.Field(&p.CompanyWebsite, is.URL),
			validation.Field(&p.LinkedInURL, is.URL),
			validation.Field(&p.UrgencyTier, validation.Min(0), validation.Max(3)),
			validation.Field(&p.MBTIType, validation.Length(4, 4)),
		)
	}, "Invalid profile")
}

// requireOwner rejects the zero user id. uuid.UUID is a driver.Valuer, so
// comparison rules would see its string form instead.
func requireOwner(value any) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return stderrors.New("user id is required")
	}
	return nil
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PROFILE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PROFILE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PROFILE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PROFILE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
