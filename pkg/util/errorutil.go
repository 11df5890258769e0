package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the authentication failure taxonomy.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeWrongTokenType     = "WRONG_TOKEN_TYPE"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInactiveAccount    = "INACTIVE_ACCOUNT"
	CodeDuplicateUser      = "DUPLICATE_USER"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewInvalidCredentials covers both unknown username and wrong password,
// with a single message so callers cannot enumerate accounts.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid username or password", http.StatusUnauthorized, nil)
}

// NewInvalidToken covers signature mismatch, malformed structure and
// expiry as one undistinguished class.
func NewInvalidToken() error {
	return NewDomainError(CodeInvalidToken, "invalid token", http.StatusUnauthorized, nil)
}

// NewWrongTokenType reports the actual vs expected token type. Safe to
// surface since the signature has already been verified at this point.
func NewWrongTokenType(actual, expected string) error {
	return NewDomainError(
		CodeWrongTokenType,
		fmt.Sprintf("invalid token type %q, expected %q", actual, expected),
		http.StatusUnauthorized,
		nil,
	)
}

func NewUserNotFound() error {
	return NewDomainError(CodeUserNotFound, "user not found", http.StatusUnauthorized, nil)
}

func NewInactiveAccount() error {
	return NewDomainError(CodeInactiveAccount, "user inactive", http.StatusForbidden, nil)
}

func NewDuplicateUser() error {
	return NewDomainError(CodeDuplicateUser, "username or email already exists", http.StatusConflict, nil)
}

func NewStorageUnavailable(err error) error {
	return &DomainError{
		Code:       CodeStorageUnavailable,
		Message:    "storage unavailable",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewTooManyAttempts() error {
	return NewDomainError(CodeTooManyAttempts, "too many login attempts", http.StatusTooManyRequests, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Unknown errors
// collapse to a generic 500 so internals never leak to clients.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
