// Package apperr defines the error taxonomy shared by the exam and point ledgers.
// Callers match on the sentinels with errors.Is and translate them for users.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCompleted = errors.New("exam attempt already completed")
	ErrBudgetExceeded   = errors.New("manual points budget exceeded")
	ErrForbidden        = errors.New("forbidden")
)

// InvalidInput wraps ErrInvalidInput with a formatted detail.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the kind and id of the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// Forbidden wraps ErrForbidden with the operation the actor attempted.
func Forbidden(op string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, op)
}

// BudgetExceededError reports how much of a teacher's per-session budget is
// already used and what the rejected request asked for.
type BudgetExceededError struct {
	Cap       int
	Used      int
	Requested int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("manual points budget exceeded: cap %d, used %d, requested %d",
		e.Cap, e.Used, e.Requested)
}

func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}
