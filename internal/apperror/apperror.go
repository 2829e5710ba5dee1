// Package apperror defines the error kinds surfaced by the procurement core
// and how they map onto HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindBudgetExceeded Kind = "BUDGET_EXCEEDED"
	KindForbidden      Kind = "FORBIDDEN"
	KindConfiguration  Kind = "CONFIGURATION"
)

// Error is a classified domain error. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrBudgetExceeded = &Error{Kind: KindBudgetExceeded}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrConfiguration  = &Error{Kind: KindConfiguration}
)

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// BudgetExceededError carries the figures behind a failed budget check.
type BudgetExceededError struct {
	Month     string
	Ceiling   decimal.Decimal
	Committed decimal.Decimal
	Requested decimal.Decimal
}

// Shortfall is how far committed plus requested spend overshoots the ceiling.
func (e *BudgetExceededError) Shortfall() decimal.Decimal {
	return e.Committed.Add(e.Requested).Sub(e.Ceiling)
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded for %s: ceiling %s, committed %s, requested %s, shortfall %s",
		e.Month, e.Ceiling.StringFixed(2), e.Committed.StringFixed(2), e.Requested.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var be *BudgetExceededError
	if errors.As(err, &be) {
		return KindBudgetExceeded
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBudgetExceeded:
		return http.StatusUnprocessableEntity
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text to show the caller. Unclassified errors are
// reported generically.
func PublicMessage(err error) string {
	if KindOf(err) == "" {
		return "internal server error"
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
