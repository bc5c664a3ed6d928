package models

import "time"

type RefreshToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	IsUsed    bool
	IsRevoked bool
	DeviceID  string
	OriginIP  string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsActive reports whether the token may still be exchanged at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsUsed && !t.IsRevoked && now.Before(t.ExpiresAt)
}

// VerificationKind discriminates the single-use token flows.
type VerificationKind string

const (
	KindEmailVerification VerificationKind = "email_verification"
	KindPasswordReset     VerificationKind = "password_reset"
)

type VerificationToken struct {
	ID          string
	AccountID   string
	Kind        VerificationKind
	Token       string
	Code        string
	ExpiresAt   time.Time
	IsUsed      bool
	UsedAt      *time.Time
	RequestedIP string
	CreatedAt   time.Time
}
