package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrValidation is the root of every caller-correctable input error.
	ErrValidation = errors.New("validation failed")

	// Capacity and eligibility errors
	ErrCapacityExceeded         = errors.New("project has no available spots")
	ErrNotAcceptingApplications = errors.New("project is not accepting applications")
	ErrDuplicateApplication     = errors.New("an active application already exists for this project")
	ErrNotEligible              = errors.New("user is not eligible to log hours for this project")
	ErrAlreadyMember            = errors.New("user is already a member of this project")
	ErrNotMember                = errors.New("user is not a member of this project")
	ErrProjectInactive          = errors.New("project is not active")

	// Field errors
	ErrInvalidTimeRange  = errors.New("start time must be before end time")
	ErrInvalidDateRange  = errors.New("start date must be before end date")
	ErrDateOutsideWindow = errors.New("date is outside the project window")
	ErrHoursOutOfRange   = errors.New("hours must be between 0.25 and 24.00")
	ErrHoursPrecision    = errors.New("hours may have at most two decimal places")
	ErrInvalidCarnet     = errors.New("carnet may only contain uppercase letters and digits")
	ErrInvalidEnum       = errors.New("value is not one of the allowed choices")
	ErrRequired          = errors.New("field is required")
	ErrOutOfRange        = errors.New("value is out of range")
)

// ValidationError is a per-field validation failure. It unwraps to
// ErrValidation and to the specific cause.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// NewValidationError creates a ValidationError whose message is taken from
// the cause.
func NewValidationError(field string, cause error) *ValidationError {
	msg := "invalid value"
	if cause != nil {
		msg = cause.Error()
	}
	return &ValidationError{Field: field, Message: msg, Err: cause}
}

// Invalidf creates a ValidationError with a formatted message and no
// specific cause beyond ErrValidation.
func Invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// FieldOf returns the offending field of a validation error, or "".
func FieldOf(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Field
	}
	return ""
}
