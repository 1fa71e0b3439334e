/*
errors.go - Centralized error taxonomy for the payout engine

PURPOSE:
  Three failure classes, all fatal to the operation that raised them:
  1. Validation errors - malformed input (missing duration, bad percentage)
  2. Not found errors - a referenced entity is absent
  3. Invariant violations - the operation would break an at-most-once or
     structural guarantee (duplicate schedule, agent cycle, double penalty)

USAGE:
  Wrap with context, test with errors.Is / errors.As:

    if errors.Is(err, generic.ErrInvariant) {
        var iv *generic.InvariantViolation
        errors.As(err, &iv) // iv.Code == generic.CodeAgentCycle
    }

SEE ALSO:
  - api/handlers.go: maps these to 400/404/409
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvariant is returned when an operation would break a structural
	// or at-most-once guarantee. Callers must not retry blindly.
	ErrInvariant = errors.New("invariant violation")

	// ErrInvalidPeriod is returned when a period is malformed (end not after start).
	ErrInvalidPeriod = fmt.Errorf("%w: invalid period: end not after start", ErrValidation)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string // e.g. "customer", "plan", "installment"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvariantCode classifies an InvariantViolation.
type InvariantCode string

const (
	CodeDuplicateSchedule InvariantCode = "duplicate_schedule"
	CodeAgentCycle        InvariantCode = "agent_cycle"
	CodeDuplicatePenalty  InvariantCode = "duplicate_penalty"
	CodeAlreadyPaid       InvariantCode = "already_paid"
	CodeNegativeAmount    InvariantCode = "negative_amount"
	CodeDuplicateGrant    InvariantCode = "duplicate_grant"
)

// InvariantViolation reports which guarantee the operation would have broken.
type InvariantViolation struct {
	Code   InvariantCode
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation (%s): %s", e.Code, e.Detail)
}

func (e *InvariantViolation) Unwrap() error { return ErrInvariant }

// Violation builds an InvariantViolation with a formatted detail.
func Violation(code InvariantCode, format string, args ...any) error {
	return &InvariantViolation{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvariant returns true if the operation was refused to protect a guarantee.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}

// ViolationCode extracts the code of an InvariantViolation anywhere in err's chain.
func ViolationCode(err error) (InvariantCode, bool) {
	var iv *InvariantViolation
	if errors.As(err, &iv) {
		return iv.Code, true
	}
	return "", false
}
