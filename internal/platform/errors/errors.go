// Package errors provides structured errors with a kind that maps onto
// both HTTP status codes and the error payload sent to websocket sessions.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an error, used in responses and metrics labels.
type Kind string

const (
	// KindInvalidInput indicates a rejected command or request (HTTP 400)
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound indicates a missing preset or resource (HTTP 404)
	KindNotFound Kind = "not_found"
	// KindPersistence indicates a failed preset write (HTTP 500)
	KindPersistence Kind = "persistence"
	// KindAdapter indicates a DSP backend failure (HTTP 502)
	KindAdapter Kind = "adapter"
	// KindInternal indicates any other server-side failure (HTTP 500)
	KindInternal Kind = "internal"
)

// Error represents a structured error with kind, message, and context.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAdapter:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// InvalidInput creates a rejected-input error. cause may be nil.
func InvalidInput(message string, cause error) *Error {
	return newError(KindInvalidInput, message, cause)
}

// NotFound creates a not-found error.
func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

// Persistence creates an error for failed writes to the preset store.
func Persistence(message string, cause error) *Error {
	return newError(KindPersistence, message, cause)
}

// Adapter creates an error for DSP backend failures.
func Adapter(message string, cause error) *Error {
	return newError(KindAdapter, message, cause)
}

// Internal creates an internal error.
func Internal(message string, cause error) *Error {
	return newError(KindInternal, message, cause)
}

// WithContext adds a context field to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to HTTP clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Kind    Kind           `json:"kind"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Kind:    e.Kind,
		Context: e.Context,
	}
}

// Describe returns the message shown to clients, including the cause for
// input errors so a rejected command says what was wrong with it.
func (e *Error) Describe() string {
	if e.Cause != nil && e.Kind == KindInvalidInput {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return Internal("internal server error", err)
}

// KindOf returns the kind of err, or KindInternal for unstructured errors.
func KindOf(err error) Kind {
	return AsStructuredError(err).Kind
}
