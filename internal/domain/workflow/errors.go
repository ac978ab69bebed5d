package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStateTransition is returned when a trigger is not permitted in
	// the current state, including any decision against a terminal requisition.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guard for a trigger rejects it
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrValidation covers missing currency, empty allocations and allocation/total mismatch.
	ErrValidation = errors.New("validation error")

	// ErrConfigurationMissing is returned when a threshold, exchange rate or role has no value.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrNoPendingApprovalForApprover is returned when the approver has no pending step.
	ErrNoPendingApprovalForApprover = errors.New("no pending approval for approver")

	// ErrMissingPrerequisite is returned when a purchase order cannot be built from the requisition.
	ErrMissingPrerequisite = errors.New("missing prerequisite")

	// ErrDocumentGeneration wraps any failure creating the purchase order.
	ErrDocumentGeneration = errors.New("document generation failed")

	// ErrVersionConflict is returned when the requisition changed underneath a write.
	ErrVersionConflict = errors.New("requisition version conflict")

	// ErrRequisitionNotFound is returned when no requisition has the given id.
	ErrRequisitionNotFound = errors.New("requisition not found")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConfigurationMissingError wraps ErrConfigurationMissing with the key that failed.
func ConfigurationMissingError(key string) error {
	return fmt.Errorf("%w: %s", ErrConfigurationMissing, key)
}
