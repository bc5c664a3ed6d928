package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccount_Status(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		acc  Account
		want AccountStatus
	}{
		{"active", Account{IsActive: true, EmailVerified: true}, StatusActive},
		{"unverified", Account{IsActive: true}, StatusUnverified},
		{"locked", Account{IsActive: true, EmailVerified: true, Lockout: LockoutState{LockedUntil: &future}}, StatusLocked},
		{"lock expired", Account{IsActive: true, EmailVerified: true, Lockout: LockoutState{LockedUntil: &past}}, StatusActive},
		{"lock ends exactly now", Account{IsActive: true, EmailVerified: true, Lockout: LockoutState{LockedUntil: &now}}, StatusActive},
		{"inactive beats locked", Account{Lockout: LockoutState{LockedUntil: &future}}, StatusInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.acc.Status(now))
		})
	}
}

func TestAccount_HasPassword(t *testing.T) {
	assert.True(t, (&Account{PasswordHash: "h", Kind: KindPassword}).HasPassword())
	assert.True(t, (&Account{PasswordHash: "h", Kind: KindBoth}).HasPassword())
	assert.False(t, (&Account{Kind: KindFederated}).HasPassword())
	assert.False(t, (&Account{Kind: KindPassword}).HasPassword())
}

func TestNormalizeEmailAndDomain(t *testing.T) {
	assert.Equal(t, "john@beesrs.com", NormalizeEmail("  John@BeesRS.com "))
	assert.Equal(t, "beesrs.com", EmailDomain("John@BEESRS.com"))
	assert.Equal(t, "", EmailDomain("no-at-sign"))
	assert.Equal(t, "", EmailDomain("trailing@"))
}

func TestTokenPredicates(t *testing.T) {
	now := time.Now()

	rt := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, rt.IsActive(now))
	rt.IsUsed = true
	assert.False(t, rt.IsActive(now))
	rt = RefreshToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}
	assert.False(t, rt.IsActive(now))
	rt = RefreshToken{ExpiresAt: now}
	assert.False(t, rt.IsActive(now))
}

func TestProfile_FullName(t *testing.T) {
	assert.Equal(t, "Anh Nguyen", (&Profile{FirstName: "Anh", LastName: "Nguyen"}).FullName())
	assert.Equal(t, "Anh", (&Profile{FirstName: "Anh"}).FullName())
}
