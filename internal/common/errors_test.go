package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountLockedError_MatchesSentinel(t *testing.T) {
	until := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	err := fmt.Errorf("login: %w", &AccountLockedError{Until: until})

	assert.ErrorIs(t, err, ErrAccountLocked)

	var le *AccountLockedError
	assert.True(t, errors.As(err, &le))
	assert.Equal(t, until, le.Until)
	assert.Contains(t, err.Error(), "2030-01-02T03:04:05Z")
}

func TestValidationError_StableMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"password": "too short",
		"email":    "invalid",
	}}

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation error: email: invalid; password: too short", err.Error())
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(ErrInvalidCredentials))
	assert.True(t, IsDomainError(fmt.Errorf("wrap: %w", ErrEmailAlreadyUsed)))
	assert.True(t, IsDomainError(&AccountLockedError{}))
	assert.True(t, IsDomainError(&ValidationError{}))
	assert.False(t, IsDomainError(errors.New("db down")))
	assert.False(t, IsDomainError(ErrorNotFound))
}
