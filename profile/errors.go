package profile

import "github.com/goliatone/go-errors"

// ErrProfileNotFound is returned when a user has no assessment profile yet.
var ErrProfileNotFound = errors.New("profile not found", errors.CategoryNotFound).
	WithTextCode("PROFILE_NOT_FOUND").
	WithCode(errors.CodeNotFound)

// ErrProfileInvalid is returned when a profile fails validation.
var ErrProfileInvalid = errors.New("profile is invalid", errors.CategoryValidation).
	WithTextCode("PROFILE_INVALID").
	WithCode(errors.CodeBadRequest)

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryNotFound
	}
	return false
}
