// Package lockout decides when repeated login failures lock an account.
// It holds no state and performs no I/O.
package lockout

import (
	"time"

	"github.com/beesrs/identity/internal/server/models"
)

const ReasonTooManyAttempts = "too many failed attempts"

type Policy struct {
	Threshold int
	Duration  time.Duration
}

func NewPolicy(threshold int, duration time.Duration) Policy {
	return Policy{Threshold: threshold, Duration: duration}
}

// IsLocked reports whether s forbids a login at now and until when.
func (p Policy) IsLocked(s models.LockoutState, now time.Time) (bool, time.Time) {
	if s.IsLocked(now) {
		return true, *s.LockedUntil
	}
	return false, time.Time{}
}

// RegisterFailure returns the state after one more failed attempt and
// whether that attempt locked the account. A lock that has already lifted
// starts a fresh count.
func (p Policy) RegisterFailure(s models.LockoutState, now time.Time) (models.LockoutState, bool) {
	next := s
	if s.LockedUntil != nil && !s.IsLocked(now) {
		next = models.LockoutState{}
	}

	t := now
	next.FailedAttempts++
	next.LastFailedAt = &t

	if next.FailedAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
		next.LockReason = ReasonTooManyAttempts
		return next, true
	}
	return next, false
}

// RegisterSuccess returns a cleared state.
func (p Policy) RegisterSuccess() models.LockoutState {
	return models.LockoutState{}
}

// Remaining is how many failures are left before the account locks.
func (p Policy) Remaining(s models.LockoutState) int {
	if r := p.Threshold - s.FailedAttempts; r > 0 {
		return r
	}
	return 0
}
