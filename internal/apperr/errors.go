// Package apperr defines the error taxonomy shared by acquisition,
// credential resolution and identification.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure
type Kind string

const (
	InvalidInput     Kind = "InvalidInput"
	CapabilityError  Kind = "CapabilityError"
	PermissionDenied Kind = "PermissionDenied"
	DeviceError      Kind = "DeviceError"
	Unavailable      Kind = "Unavailable"
	Timeout          Kind = "Timeout"
	TransportError   Kind = "TransportError"
	HTTPError        Kind = "HttpError"
	EmptyResult      Kind = "EmptyResult"
)

// Error is an OperationError: a kind plus a user-facing message
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status for HttpError, zero otherwise
	Status int
	Err    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind carrying err's message
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// HTTP creates an HttpError with the standard "API Error (<status>): <reason>" message
func HTTP(status int, reason string) *Error {
	return &Error{
		Kind:    HTTPError,
		Status:  status,
		Message: fmt.Sprintf("API Error (%d): %s", status, reason),
	}
}

// KindOf returns the kind of err, or "" if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage renders err the way it is shown to the user
func UserMessage(err error) string {
	return fmt.Sprintf("Error: %s. Please try again or check your image.", err.Error())
}
