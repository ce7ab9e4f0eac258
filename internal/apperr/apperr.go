// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified application error. The Code is stable and
// machine-checkable; Message is safe to return to clients.
type Error struct {
	Code    string
	Status  int
	Message string
	cause   error
}

var (
	ErrUnauthorized      = &Error{Code: "unauthorized", Status: http.StatusUnauthorized, Message: "authentication required"}
	ErrForbidden         = &Error{Code: "forbidden", Status: http.StatusForbidden, Message: "access denied"}
	ErrNotFound          = &Error{Code: "not_found", Status: http.StatusNotFound, Message: "resource not found"}
	ErrInvalidInput      = &Error{Code: "invalid_input", Status: http.StatusBadRequest, Message: "invalid input"}
	ErrUpstream          = &Error{Code: "upstream_failure", Status: http.StatusInternalServerError, Message: "upstream request failed"}
	ErrPartialCompletion = &Error{Code: "partial_completion", Status: http.StatusInternalServerError, Message: "stream ended before completion"}
)

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches by code so wrapped copies compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific client message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: msg, cause: e.cause}
}

// Wrap returns a copy of e with err recorded as the cause.
func Wrap(e *Error, err error) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: e.Message, cause: err}
}

// Status returns the HTTP status for err, defaulting to 500.
func Status(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-safe message for err.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal server error"
}

// CodeOf returns the machine-checkable code for err.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "internal"
}
