package valuation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredInput matches every MissingRequiredInputError
	ErrMissingRequiredInput = errors.New("missing required input")
	// ErrInsufficientPriceInput is raised by the ICE engine when no price anchor exists
	ErrInsufficientPriceInput = errors.New("insufficient price input")
	// ErrMissingBatteryCapacity is raised by the EV engine without a battery capacity
	ErrMissingBatteryCapacity = errors.New("missing battery capacity")
	// ErrInvalidDate matches every InvalidDateError
	ErrInvalidDate = errors.New("invalid date")
	// ErrConfiguration matches every ConfigurationError
	ErrConfiguration = errors.New("invalid valuation configuration")
)

// MissingRequiredInputError is fatal to a single valuation call
type MissingRequiredInputError struct {
	Field  string
	Reason string
	cause  error
}

func (e *MissingRequiredInputError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing required input %q", e.Field)
	}
	return fmt.Sprintf("missing required input %q: %s", e.Field, e.Reason)
}

// Is lets errors.Is match both the generic sentinel and the specific cause
func (e *MissingRequiredInputError) Is(target error) bool {
	return target == ErrMissingRequiredInput || (e.cause != nil && target == e.cause)
}

func missingInput(field, reason string, cause error) *MissingRequiredInputError {
	return &MissingRequiredInputError{Field: field, Reason: reason, cause: cause}
}

// InvalidDateError is recovered inside the normalizer and only surfaces in the audit log
type InvalidDateError struct {
	Value string
	Err   error
}

func (e *InvalidDateError) Error() string {
	if e.Value == "" {
		return "date missing"
	}
	return fmt.Sprintf("unparseable date %q", e.Value)
}

func (e *InvalidDateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidDate}
	}
	return []error{ErrInvalidDate, e.Err}
}

// ConfigurationError reports a malformed static configuration
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid valuation config %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
