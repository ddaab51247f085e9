// Package apierr defines the gateway's typed error taxonomy.
//
// Every handler returns *Error (or wraps one) instead of a bare error so the
// envelope assembler can render {code, message, status} plus the optional
// fields/retryAfter/details/links without type-switching on opaque errors.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the fixed error codes from the taxonomy.
type Code string

const (
	BadRequest         Code = "BAD_REQUEST"
	Unauthorized       Code = "UNAUTHORIZED"
	Forbidden          Code = "FORBIDDEN"
	NotFound           Code = "NOT_FOUND"
	MethodNotFound     Code = "METHOD_NOT_FOUND"
	ValidationError    Code = "VALIDATION_ERROR"
	Conflict           Code = "CONFLICT"
	RateLimited        Code = "RATE_LIMITED"
	PaymentRequired    Code = "PAYMENT_REQUIRED"
	InternalError      Code = "INTERNAL_ERROR"
	InvalidJSON        Code = "INVALID_JSON"
	InvalidRPCRequest  Code = "INVALID_RPC_REQUEST"
	FunctionNotFound   Code = "FUNCTION_NOT_FOUND"
	FunctionError      Code = "FUNCTION_ERROR"
	ProxyError         Code = "PROXY_ERROR"
	UpstreamInvalidSON Code = "UPSTREAM_INVALID_JSON"
	PathNotAllowed     Code = "PATH_NOT_ALLOWED"
	InvalidPath        Code = "INVALID_PATH"
)

// defaultStatus maps each code to its canonical HTTP status.
var defaultStatus = map[Code]int{
	BadRequest:         http.StatusBadRequest,
	Unauthorized:       http.StatusUnauthorized,
	Forbidden:          http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	MethodNotFound:     http.StatusNotFound,
	ValidationError:    http.StatusUnprocessableEntity,
	Conflict:           http.StatusConflict,
	RateLimited:        http.StatusTooManyRequests,
	PaymentRequired:    http.StatusPaymentRequired,
	InternalError:      http.StatusInternalServerError,
	InvalidJSON:        http.StatusBadRequest,
	InvalidRPCRequest:  http.StatusBadRequest,
	FunctionNotFound:   http.StatusNotFound,
	FunctionError:      http.StatusInternalServerError,
	ProxyError:         http.StatusBadGateway,
	UpstreamInvalidSON: http.StatusBadGateway,
	PathNotAllowed:     http.StatusForbidden,
	InvalidPath:        http.StatusBadRequest,
}

// FieldError describes one failing field from validation.
type FieldError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
}

// Error is the typed error every handler in the gateway returns.
type Error struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	Status     int            `json:"status"`
	Fields     []FieldError   `json:"fields,omitempty"`
	RetryAfter int            `json:"retryAfter,omitempty"`
	Details    any            `json:"details,omitempty"`
	Links      map[string]any `json:"links,omitempty"`
	cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with the code's default HTTP status.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusFor(code)}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches an underlying cause to an *Error, surfaced only via Unwrap
// (never serialized — the client never sees the wrapped error's message).
func (e *Error) Wrap(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithFields attaches per-field validation failures.
func (e *Error) WithFields(fields ...FieldError) *Error {
	clone := *e
	clone.Fields = fields
	return &clone
}

// WithRetryAfter attaches a Retry-After seconds hint.
func (e *Error) WithRetryAfter(seconds int) *Error {
	clone := *e
	clone.RetryAfter = seconds
	return &clone
}

// WithDetails attaches arbitrary structured detail.
func (e *Error) WithDetails(details any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// WithLinks attaches hypermedia action links to the error object. The
// home/status links are not added here; the gateway puts them in the
// envelope's top-level links.
func (e *Error) WithLinks(links map[string]any) *Error {
	clone := *e
	clone.Links = links
	return &clone
}

func statusFor(code Code) int {
	if s, ok := defaultStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Internal wraps any error as INTERNAL_ERROR with no message leakage,
// used by the top-level recover middleware (§7 "global error handler").
func Internal(cause error) *Error {
	return New(InternalError, "an internal error occurred").Wrap(cause)
}

// As extracts an *Error from err, or wraps it as INTERNAL_ERROR if it
// isn't already typed.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal(err)
	}
	return apiErr
}
