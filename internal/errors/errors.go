package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a domain error so callers can branch on it.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindAuthentication Kind = "authentication"
	KindPermission     Kind = "permission"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

// Error is a domain error with a stable kind and machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Fields maps offending input fields to a short reason. Only set for validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrEmailTaken is returned when the email belongs to another user.
	ErrEmailTaken = &Error{Kind: KindConflict, Code: "EMAIL_ALREADY_REGISTERED", Message: "email already registered"}
	// ErrPhoneTaken is returned when the phone number belongs to another user.
	ErrPhoneTaken = &Error{Kind: KindConflict, Code: "PHONE_ALREADY_REGISTERED", Message: "phone number already registered"}
	// ErrSelfDelete is returned when an admin targets their own account for deletion.
	ErrSelfDelete = &Error{Kind: KindConflict, Code: "CANNOT_DELETE_SELF", Message: "cannot delete your own account"}

	// ErrInvalidCredentials is the single answer for unknown identifiers and wrong passwords.
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Code: "INVALID_CREDENTIALS", Message: "incorrect email/phone or password"}
	// ErrInvalidToken is returned for malformed, tampered or unparseable tokens.
	ErrInvalidToken = &Error{Kind: KindAuthentication, Code: "INVALID_TOKEN", Message: "invalid token"}
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = &Error{Kind: KindAuthentication, Code: "TOKEN_EXPIRED", Message: "token has expired"}
	// ErrInvalidTokenType is returned when an access token is used as a refresh token or vice versa.
	ErrInvalidTokenType = &Error{Kind: KindAuthentication, Code: "INVALID_TOKEN_TYPE", Message: "invalid token type"}
	// ErrMissingToken is returned when a protected route is called without a bearer token.
	ErrMissingToken = &Error{Kind: KindAuthentication, Code: "MISSING_TOKEN", Message: "missing or malformed bearer token"}
	// ErrUnknownSubject is returned when a valid token names a user that no longer exists.
	ErrUnknownSubject = &Error{Kind: KindAuthentication, Code: "USER_NOT_FOUND", Message: "user not found"}

	// ErrForbidden is returned when the caller is authenticated but lacks role or ownership.
	ErrForbidden = &Error{Kind: KindPermission, Code: "FORBIDDEN", Message: "not enough permissions"}

	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = &Error{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "user not found"}
)

// Validation builds a validation error listing the offending fields.
func Validation(fields map[string]string) *Error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Error{
		Kind:    KindValidation,
		Code:    "VALIDATION_FAILED",
		Message: "validation failed: " + strings.Join(names, ", "),
		Fields:  fields,
	}
}

// InvalidField is shorthand for a validation error on a single field.
func InvalidField(field, reason string) *Error {
	return Validation(map[string]string{field: reason})
}

// Internal wraps an unexpected failure.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: op, Err: err}
}

// KindOf reports the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything without a kind is an internal error
// and its message is not exposed.
func MapErrorToHTTP(err error) *HTTPError {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case KindValidation:
		status = http.StatusBadRequest
	case KindConflict:
		status = http.StatusConflict
	case KindAuthentication:
		status = http.StatusUnauthorized
	case KindPermission:
		status = http.StatusForbidden
	case KindNotFound:
		status = http.StatusNotFound
	}

	httpErr := NewHTTPError(status, e.Message, e.Code)
	httpErr.Fields = e.Fields
	return httpErr
}
