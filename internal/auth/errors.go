package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindClientInput
	KindUnauthenticated
	KindUpstream
	KindStoreUnavailable
	KindRateLimited
)

// Stable machine-readable codes returned to clients.
const (
	CodeMissingCode        = "MISSING_CODE"
	CodeInvalidState       = "INVALID_STATE"
	CodeOAuthDenied        = "OAUTH_DENIED"
	CodeExchangeFailed     = "TOKEN_EXCHANGE_FAILED"
	CodeProfileFetchFailed = "USER_INFO_FETCH_FAILED"
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeEmailUnverified    = "EMAIL_NOT_VERIFIED"
	CodeCredentialMissing  = "TOKEN_NOT_FOUND"
	CodeCredentialInvalid  = "TOKEN_INVALID"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeInvalidRedirect    = "INVALID_REDIRECT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is the error type surfaced by the auth flow. Message is safe to
// show to clients; Err carries detail for logs only.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Code, e.Err)
	}
	return "auth: " + e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func ClientInput(code, msg string, err error) *Error {
	return newError(KindClientInput, code, msg, err)
}

func Unauthenticated(code, msg string, err error) *Error {
	return newError(KindUnauthenticated, code, msg, err)
}

func Upstream(code, msg string, err error) *Error {
	return newError(KindUpstream, code, msg, err)
}

func StoreUnavailable(err error) *Error {
	return newError(KindStoreUnavailable, CodeStoreUnavailable, "Authentication store unavailable", err)
}

func RateLimited() *Error {
	return newError(KindRateLimited, CodeRateLimited, "Too many requests", nil)
}

func Internal(err error) *Error {
	return newError(KindInternal, CodeInternal, "Internal server error", err)
}

// AsError converts any error into an *Error, treating unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// HasCode reports whether err is an *Error carrying code.
func HasCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
