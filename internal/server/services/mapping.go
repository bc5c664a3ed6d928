package services

import (
	"time"

	"github.com/beesrs/identity/internal/server/models"
)

func toAccountSummary(a *models.Account, p *models.Profile, roles []string, now time.Time) AccountSummary {
	s := AccountSummary{
		ID:            a.ID,
		Email:         a.Email,
		FullName:      a.Email,
		Roles:         roles,
		EmailVerified: a.EmailVerified,
		Status:        string(a.Status(now)),
	}
	if s.Roles == nil {
		s.Roles = []string{}
	}
	if p != nil {
		if n := p.FullName(); n != "" {
			s.FullName = n
		}
		s.AvatarURL = p.AvatarURL
		s.Department = p.Department
		s.Position = p.Position
	}
	return s
}

func toAuthResult(pair *TokenPair, a *models.Account, p *models.Profile, roles []string, now time.Time) *AuthResult {
	return &AuthResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		Account:      toAccountSummary(a, p, roles, now),
	}
}
