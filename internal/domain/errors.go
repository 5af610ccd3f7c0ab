package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures that are surfaced to the visitor.
type ErrorKind string

const (
	KindOutOfStock        ErrorKind = "out_of_stock"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindStockUnavailable  ErrorKind = "stock_unavailable"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindDuplicateReview   ErrorKind = "duplicate_review"
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation_error"
	KindConflict          ErrorKind = "conflict"
)

// Error is a recoverable, user-facing failure. Message is safe to show.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of the given kind that keeps cause in its chain.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// MessageOf returns the user-facing message of err, or fallback.
func MessageOf(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}
