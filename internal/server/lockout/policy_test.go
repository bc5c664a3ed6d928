package lockout

import (
	"testing"
	"time"

	"github.com/beesrs/identity/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFailure_LocksAtThreshold(t *testing.T) {
	p := NewPolicy(5, 30*time.Minute)
	now := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)

	var s models.LockoutState
	for i := 1; i <= 4; i++ {
		var locked bool
		s, locked = p.RegisterFailure(s, now)
		assert.False(t, locked, "attempt %d", i)
		assert.Equal(t, i, s.FailedAttempts)
		assert.Nil(t, s.LockedUntil)
	}
	assert.Equal(t, 1, p.Remaining(s))

	s, locked := p.RegisterFailure(s, now)
	require.True(t, locked)
	require.NotNil(t, s.LockedUntil)
	assert.Equal(t, now.Add(30*time.Minute), *s.LockedUntil)
	assert.Equal(t, ReasonTooManyAttempts, s.LockReason)
	assert.Equal(t, 0, p.Remaining(s))

	isLocked, until := p.IsLocked(s, now.Add(29*time.Minute))
	assert.True(t, isLocked)
	assert.Equal(t, now.Add(30*time.Minute), until)
}

func TestIsLocked_AutoUnlock(t *testing.T) {
	p := NewPolicy(5, 30*time.Minute)
	now := time.Now()
	until := now.Add(30 * time.Minute)
	s := models.LockoutState{FailedAttempts: 5, LockedUntil: &until}

	locked, _ := p.IsLocked(s, until)
	assert.False(t, locked, "lock lifts when now == locked_until")

	locked, _ = p.IsLocked(s, until.Add(time.Second))
	assert.False(t, locked)
}

func TestRegisterFailure_AfterExpiredLockStartsOver(t *testing.T) {
	p := NewPolicy(5, 30*time.Minute)
	now := time.Now()
	past := now.Add(-time.Minute)
	s := models.LockoutState{FailedAttempts: 5, LockedUntil: &past, LockReason: ReasonTooManyAttempts}

	next, locked := p.RegisterFailure(s, now)
	assert.False(t, locked)
	assert.Equal(t, 1, next.FailedAttempts)
	assert.Nil(t, next.LockedUntil)
	assert.Empty(t, next.LockReason)
}

func TestRegisterFailure_DoesNotMutateInput(t *testing.T) {
	p := NewPolicy(2, time.Minute)
	s := models.LockoutState{FailedAttempts: 1}

	_, _ = p.RegisterFailure(s, time.Now())
	assert.Equal(t, 1, s.FailedAttempts)
	assert.Nil(t, s.LastFailedAt)
}

func TestRegisterSuccess_Clears(t *testing.T) {
	p := NewPolicy(5, time.Minute)
	assert.Equal(t, models.LockoutState{}, p.RegisterSuccess())
}
