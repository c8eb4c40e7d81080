package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Stable machine-readable error codes.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeDuplicateEmail      = "DUPLICATE_EMAIL"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeRoleMismatch        = "ROLE_MISMATCH"
	CodeVendorPending       = "VENDOR_PENDING_APPROVAL"
	CodeVendorStoreInactive = "VENDOR_STORE_INACTIVE"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// InvalidCredentialsMessage is the single external message for failed logins.
const InvalidCredentialsMessage = "invalid email or password"

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
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewDuplicateEmail(email string) error {
	return NewDomainError(CodeDuplicateEmail, "email already registered", http.StatusConflict,
		map[string]any{"email": email})
}

// NewInvalidCredentials hides whether the account exists; cause keeps the
// internal reason for logs and errors.Is checks.
func NewInvalidCredentials(cause error) error {
	return &DomainError{
		Code:       CodeInvalidCredentials,
		Message:    InvalidCredentialsMessage,
		HTTPStatus: http.StatusBadRequest,
		Err:        cause,
	}
}

func NewRoleMismatch(expected string) error {
	return NewDomainError(CodeRoleMismatch, "account does not have the requested role", http.StatusForbidden,
		map[string]any{"expected_role": expected})
}

func NewVendorPendingApproval(status string) error {
	return NewDomainError(CodeVendorPending, "vendor account is awaiting approval", http.StatusForbidden,
		map[string]any{"status": status})
}

func NewVendorStoreInactive() error {
	return NewDomainError(CodeVendorStoreInactive, "vendor store is not active", http.StatusForbidden,
		map[string]any{"store_active": false})
}

// NewUnauthenticated reports a missing or unusable identity. refreshable tells
// the client whether a refresh-token exchange may recover.
func NewUnauthenticated(message string, refreshable bool) error {
	return NewDomainError(CodeUnauthenticated, message, http.StatusUnauthorized,
		map[string]any{"refreshable": refreshable})
}

func NewTokenExpired() error {
	return NewDomainError(CodeTokenExpired, "token expired", http.StatusUnauthorized,
		map[string]any{"refreshable": true})
}

func NewTokenInvalid() error {
	return NewDomainError(CodeTokenInvalid, "token invalid", http.StatusUnauthorized,
		map[string]any{"refreshable": false})
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewMissingPermission(permission string) error {
	return NewDomainError(CodeForbidden, "insufficient permissions", http.StatusForbidden,
		map[string]any{"missing_permission": permission})
}

func NewMissingRole(roles []string) error {
	return NewDomainError(CodeForbidden, "insufficient role", http.StatusForbidden,
		map[string]any{"required_roles": roles})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimited, "too many requests", http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
