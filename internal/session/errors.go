package session

import (
	"errors"
	"fmt"
)

// Reasons carried by InvalidStateError. Compare with errors.Is.
var (
	ErrBusy             = errors.New("another operation is in flight")
	ErrAnalysisInactive = errors.New("analysis is not active")
	ErrNotInRuntime     = errors.New("setup has not been completed")
	ErrConsentDeclined  = errors.New("consent was declined")
	ErrWizardDone       = errors.New("onboarding already completed")
	ErrWizardStep       = errors.New("not available on this step")
	ErrUnsavedChanges   = errors.New("settings have unsaved changes")
)

// InvalidStateError reports an operation attempted while its precondition
// does not hold.
type InvalidStateError struct {
	Op     string
	Reason error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return e.Reason }

// ValidationError reports user input that cannot be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsInvalidState reports whether err is (or wraps) an *InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(op string, reason error) error {
	return &InvalidStateError{Op: op, Reason: reason}
}
