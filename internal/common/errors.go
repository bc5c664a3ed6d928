// Package common defines shared constants and sentinel errors used across
// the identity service. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Use-case failures returned to callers.
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrAccountLocked            = errors.New("account locked")
	ErrAccountDisabled          = errors.New("account disabled")
	ErrEmailNotVerified         = errors.New("email not verified")
	ErrEmailAlreadyUsed         = errors.New("email already in use")
	ErrTokenInvalidOrExpired    = errors.New("token invalid or expired")
	ErrDirectoryRecordNotFound  = errors.New("employee not found in directory")
	ErrDirectoryRecordInactive  = errors.New("employee record is not active")
	ErrAlreadyRegistered        = errors.New("employee already registered")
	ErrDomainNotAllowed         = errors.New("email domain not allowed")
	ErrNoPasswordCredential     = errors.New("account has no password, sign in with Google")
	ErrValidation               = errors.New("validation error")
	ErrIdentityAssertionInvalid = errors.New("identity assertion invalid")
)

// AccountLockedError reports a rejected login against a locked account
// together with the moment the lock lifts.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsDomainError reports whether err is one of the use-case failures that may
// be returned to a caller as is.
func IsDomainError(err error) bool {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}

var domainErrors = []error{
	ErrInvalidCredentials,
	ErrAccountLocked,
	ErrAccountDisabled,
	ErrEmailNotVerified,
	ErrEmailAlreadyUsed,
	ErrTokenInvalidOrExpired,
	ErrDirectoryRecordNotFound,
	ErrDirectoryRecordInactive,
	ErrAlreadyRegistered,
	ErrDomainNotAllowed,
	ErrNoPasswordCredential,
	ErrValidation,
	ErrIdentityAssertionInvalid,
}
