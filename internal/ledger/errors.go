package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientBalance is a validation error: errors.Is matches both.
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrValidation)
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected input field.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// InsufficientBalanceError reports a spend larger than the balance.
type InsufficientBalanceError struct {
	Balance   int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.Balance, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// PartialFailureError is returned when a ledger unit failed in storage after
// retries. The user's balance was recomputed from their approved activities
// when Reconciled is true.
type PartialFailureError struct {
	UserID     string
	Op         string
	Err        error
	Reconciled bool
}

func (e *PartialFailureError) Error() string {
	state := "reconciled"
	if !e.Reconciled {
		state = "reconcile failed"
	}
	return fmt.Sprintf("%s for user %s failed (%s): %v", e.Op, e.UserID, state, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, msg)
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

// isDomainError reports whether err was produced by ledger rules rather than storage.
func isDomainError(err error) bool {
	for _, target := range []error{ErrValidation, ErrForbidden, ErrNotFound, ErrConflict, ErrInvalidTransition} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorClass labels an error for metrics.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		return "partial_failure"
	}
	return "internal"
}
