// Package apperr defines the structured error codes shared by the sync core.
//
// Codes never carry display text; the presentation layer maps them to messages
// (see response.GetMessage).
package apperr

import (
	"errors"
	"fmt"
)

// Code is a typed error code enum for consistent error identification.
type Code string

const (
	// ─── Configuration ─────────────────────────────────────────────────
	CodeConfigMissing Code = "CONFIGURATION_MISSING"
	CodeUnknownDriver Code = "UNKNOWN_DRIVER"

	// ─── Initialization ────────────────────────────────────────────────
	CodeInitFailed          Code = "INITIALIZATION_FAILED"
	CodeIdentityUnavailable Code = "IDENTITY_UNAVAILABLE"
	CodeStorageUnavailable  Code = "STORAGE_UNAVAILABLE"

	// ─── Authentication ────────────────────────────────────────────────
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeResetCodeInvalid   Code = "RESET_CODE_INVALID"
	CodeResetCodeExpired   Code = "RESET_CODE_EXPIRED"
	CodeResetNotVerified   Code = "RESET_NOT_VERIFIED"
	CodeResetGrantInvalid  Code = "RESET_GRANT_INVALID"

	// ─── Resources ─────────────────────────────────────────────────────
	CodeNotFound      Code = "NOT_FOUND"
	CodeClassNotFound Code = "CLASS_NOT_FOUND"
	CodeUserNotFound  Code = "USER_NOT_FOUND"

	// ─── Validation ────────────────────────────────────────────────────
	CodeValidation Code = "VALIDATION_ERROR"
	CodeEmailTaken Code = "EMAIL_TAKEN"
	CodeBadCursor  Code = "INVALID_CURSOR"

	// ─── Server ────────────────────────────────────────────────────────
	CodeInternal Code = "INTERNAL_ERROR"
)

// Kind groups codes into the error taxonomy callers branch on.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindInitialization
	KindAuthentication
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInitialization:
		return "initialization"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Kind returns the taxonomy bucket of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeConfigMissing, CodeUnknownDriver:
		return KindConfiguration
	case CodeInitFailed, CodeIdentityUnavailable, CodeStorageUnavailable:
		return KindInitialization
	case CodeInvalidCredentials, CodeUnauthenticated, CodeSessionExpired,
		CodeResetCodeInvalid, CodeResetCodeExpired, CodeResetNotVerified, CodeResetGrantInvalid:
		return KindAuthentication
	case CodeNotFound, CodeClassNotFound, CodeUserNotFound:
		return KindNotFound
	case CodeValidation, CodeEmailTaken, CodeBadCursor:
		return KindValidation
	default:
		return KindInternal
	}
}

// Error is a typed failure carrying a code, the failing operation and an
// optional cause. Fields holds per-field details for validation failures.
type Error struct {
	Code   Code
	Op     string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Err == nil
}

// Kind returns the taxonomy bucket of the error.
func (e *Error) Kind() Kind { return e.Code.Kind() }

// Sentinels for errors.Is comparisons.
var (
	ErrConfigMissing      = &Error{Code: CodeConfigMissing}
	ErrInitFailed         = &Error{Code: CodeInitFailed}
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials}
	ErrUnauthenticated    = &Error{Code: CodeUnauthenticated}
	ErrSessionExpired     = &Error{Code: CodeSessionExpired}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrClassNotFound      = &Error{Code: CodeClassNotFound}
	ErrValidation         = &Error{Code: CodeValidation}
	ErrEmailTaken         = &Error{Code: CodeEmailTaken}
)

// New builds an *Error for op with an optional cause.
func New(code Code, op string, cause error) *Error {
	return &Error{Code: code, Op: op, Err: cause}
}

// Validation builds a validation error with per-field messages.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Op: op, Fields: fields}
}

// CodeOf extracts the code of err, or CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// KindOf extracts the taxonomy bucket of err.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}

// FieldsOf returns validation field details carried by err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
