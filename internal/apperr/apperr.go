// Package apperr defines the business error kinds shared by every component
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindInternal        Kind = "INTERNAL"
	KindNotFound        Kind = "NOT_FOUND"
	KindAlreadyBooked   Kind = "ALREADY_BOOKED"
	KindGroupFull       Kind = "GROUP_FULL"
	KindNoLinkedStudent Kind = "NO_LINKED_STUDENT"
	KindInvalidCapacity Kind = "INVALID_CAPACITY"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindConflict        Kind = "CONFLICT"
	KindInvalidInput    Kind = "INVALID_INPUT"
)

// Error is a sentinel carrying a Kind and an i18n message key.
// Sentinels are compared by identity; wrap them with fmt.Errorf("%w").
type Error struct {
	Kind Kind
	Key  string
}

func New(kind Kind, key string) *Error {
	return &Error{Kind: kind, Key: key}
}

func (e *Error) Error() string {
	return e.Key
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// KeyOf returns the message key of the first *Error in err's chain.
func KeyOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Key
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyBooked, KindGroupFull, KindConflict:
		return http.StatusConflict
	case KindNoLinkedStudent, KindInvalidCapacity, KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Shared sentinels not owned by a single domain package.
var (
	ErrUnauthorized    = New(KindUnauthorized, "authentication required")
	ErrForbidden       = New(KindForbidden, "you do not have permission to perform this action")
	ErrInvalidInput    = New(KindInvalidInput, "invalid input")
	ErrNoLinkedStudent = New(KindNoLinkedStudent, "no student profile is linked to this account")
)
