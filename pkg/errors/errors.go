package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes the quoting workflow distinguishes.
var (
	// ErrConfig means the service is missing endpoint or credential
	// configuration. Fatal, detected before any network I/O.
	ErrConfig = errors.New("configuration error")

	// ErrValidation means a client-supplied field or enum value failed a
	// local check. The offending call never reaches the remote API.
	ErrValidation = errors.New("validation error")

	// ErrAuth means token refresh failed or a 401 persisted after the single
	// re-authentication retry.
	ErrAuth = errors.New("authentication error")

	// ErrTransport means a network-level failure (DNS, timeout, refused
	// connection). Reported, never auto-retried.
	ErrTransport = errors.New("transport error")

	// ErrAPI means the remote API answered a 4xx/5xx with a business message.
	ErrAPI = errors.New("api error")

	// ErrNotFound is used by the local stores (pending payments, sessions).
	ErrNotFound = errors.New("resource not found")
)

// AppError is a structured error with an HTTP status mapping for the
// front-end boundary.
type AppError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Field   string          `json:"field,omitempty"`
	Status  int             `json:"-"`
	Payload json.RawMessage `json:"-"`
	Err     error           `json:"-"`
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Config creates a configuration error. These fail fast, before any network
// call is attempted.
func Config(message string) *AppError {
	return &AppError{
		Code:    "CONFIG_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     ErrConfig,
	}
}

// Validation creates a client-side validation error naming the offending
// field.
func Validation(field, message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Field:   field,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Auth creates an authentication error (token refresh failure or persistent
// 401).
func Auth(message string) *AppError {
	return &AppError{
		Code:    "AUTH_ERROR",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrAuth,
	}
}

// Transport wraps a network-level failure.
func Transport(err error) *AppError {
	return &AppError{
		Code:    "TRANSPORT_ERROR",
		Message: err.Error(),
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrTransport, err),
	}
}

// API creates an error for a remote 4xx/5xx response. The message is the best
// message the response body offered; payload carries the full response body
// as error context.
func API(status int, message string, payload json.RawMessage) *AppError {
	return &AppError{
		Code:    "API_ERROR",
		Message: message,
		Status:  http.StatusBadGateway,
		Payload: payload,
		Err:     fmt.Errorf("%w: status %d", ErrAPI, status),
	}
}

// NotFound creates an error for a missing local resource.
func NotFound(resource, key string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with key %s not found", resource, key),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuth), errors.Is(err, ErrTransport), errors.Is(err, ErrAPI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
