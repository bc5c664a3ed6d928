// Package auth issues and verifies HS256 access tokens.
package auth

import (
	"errors"
	"time"

	"github.com/beesrs/identity/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the account identity and roles inside an access token.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string   `json:"uid"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
}

type Manager struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

func NewManager(secret []byte, issuer string, validity time.Duration) *Manager {
	return &Manager{secret: secret, issuer: issuer, validity: validity, now: time.Now}
}

// Issue signs a new access token and returns it with its expiry.
func (m *Manager) Issue(accountID, email string, roles []string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		AccountID: accountID,
		Email:     email,
		Roles:     roles,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer and expiry.
// It returns common.ErrTokenExpired or common.ErrInvalidToken on failure.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, m.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if claims.AccountID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// IdentityFromExpired extracts claims from a token whose lifetime may have
// ended. The signature and issuer are still verified.
func (m *Manager) IdentityFromExpired(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, m.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if claims.Issuer != m.issuer || claims.AccountID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) key(*jwt.Token) (any, error) {
	return m.secret, nil
}
