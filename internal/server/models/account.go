// Package models defines the identity entities persisted in the database.
package models

import (
	"strings"
	"time"
)

// AccountKind records which credentials an account can sign in with.
type AccountKind string

const (
	KindPassword  AccountKind = "password"
	KindFederated AccountKind = "federated"
	KindBoth      AccountKind = "both"
)

// AccountStatus is the derived state of an account at a moment in time.
type AccountStatus string

const (
	StatusUnverified AccountStatus = "Unverified"
	StatusActive     AccountStatus = "Active"
	StatusLocked     AccountStatus = "Locked"
	StatusInactive   AccountStatus = "Inactive"
)

// LockoutState is the failed-login bookkeeping stored on an account.
type LockoutState struct {
	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
	LockReason     string
}

// IsLocked reports whether the lock is still in force at now.
// A lock lifts once now >= LockedUntil.
func (s LockoutState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

type Account struct {
	ID                string
	Email             string
	PasswordHash      string
	Kind              AccountKind
	IsActive          bool
	EmailVerified     bool
	EmailVerifiedAt   *time.Time
	Lockout           LockoutState
	LastLoginAt       *time.Time
	LastLoginIP       string
	LastLoginProvider string
	ExternalSubject   string
	DirectoryRecordID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasPassword reports whether the account can sign in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != "" && a.Kind != KindFederated
}

// Status derives the account state. Inactive wins over Locked, Locked over
// Unverified.
func (a *Account) Status(now time.Time) AccountStatus {
	switch {
	case !a.IsActive:
		return StatusInactive
	case a.Lockout.IsLocked(now):
		return StatusLocked
	case !a.EmailVerified:
		return StatusUnverified
	default:
		return StatusActive
	}
}

// NormalizeEmail trims and lower-cases an address for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the normalized part after the last '@', or "".
func EmailDomain(email string) string {
	e := NormalizeEmail(email)
	i := strings.LastIndexByte(e, '@')
	if i < 0 || i == len(e)-1 {
		return ""
	}
	return e[i+1:]
}
