package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"slices"
)

// Code is the machine-readable error kind returned to API clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// ledger and payout kinds
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeDuplicateOperation  Code = "DUPLICATE_OPERATION"
	CodeGateway             Code = "GATEWAY_ERROR"
	CodeIntegrity           Code = "INTEGRITY_ERROR"
)

// Metadata decides how a code is rendered over HTTP and whether callers may retry.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable   = true
	final       = false
	withDetails = true
	opaque      = false
)

func meta(status int, retry bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retry, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, final, "validation failed", withDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, final, "authentication required", opaque),
	CodeForbidden:     meta(http.StatusForbidden, final, "access denied", opaque),
	CodeNotFound:      meta(http.StatusNotFound, final, "resource not found", opaque),
	CodeConflict:      meta(http.StatusConflict, final, "conflict detected", opaque),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, final, "state transition disallowed", withDetails),
	CodeIdempotency:   meta(http.StatusConflict, final, "idempotency key reused", withDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, final, "rate limit exceeded", opaque),
	CodeInternal:      meta(http.StatusInternalServerError, retryable, "internal server error", opaque),
	CodeDependency:    meta(http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails),

	CodeInsufficientBalance: meta(http.StatusUnprocessableEntity, final, "insufficient balance", opaque),
	CodeDuplicateOperation:  meta(http.StatusConflict, final, "operation already applied", withDetails),
	CodeGateway:             meta(http.StatusBadGateway, retryable, "payout gateway error", withDetails),
	CodeIntegrity:           meta(http.StatusInternalServerError, final, "ledger integrity violation", opaque),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with an optional cause and client-facing details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether the outermost coded error in err's chain has one of codes.
func Is(err error, codes ...Code) bool {
	typed := As(err)
	return typed != nil && slices.Contains(codes, typed.code)
}

func As(err error) *Error {
	var typed *Error
	if err == nil || !stdErrors.As(err, &typed) {
		return nil
	}
	return typed
}

// Retryable reports whether repeating the failed call may succeed. Uncoded
// errors are assumed transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.code).Retryable
}
