// Package identity validates external identity assertions. Google ID tokens
// are checked for signature, audience and expiry by google.golang.org/api.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/beesrs/identity/internal/common"
	"google.golang.org/api/idtoken"
)

// ExternalIdentity is the verified subset of an ID token used for sign-in.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

type Validator interface {
	Validate(ctx context.Context, assertion string) (*ExternalIdentity, error)
}

type GoogleValidator struct {
	audience string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleValidator(clientID string) *GoogleValidator {
	return &GoogleValidator{audience: clientID, validate: idtoken.Validate}
}

// Validate returns common.ErrIdentityAssertionInvalid for any token the
// library rejects or whose email is missing or unverified.
func (v *GoogleValidator) Validate(ctx context.Context, assertion string) (*ExternalIdentity, error) {
	if v.audience == "" {
		return nil, errors.New("google client id is not configured")
	}

	p, err := v.validate(ctx, assertion, v.audience)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", common.ErrIdentityAssertionInvalid, err)
	}

	id := &ExternalIdentity{
		Subject:       p.Subject,
		Email:         claimString(p.Claims, "email"),
		EmailVerified: claimBool(p.Claims, "email_verified"),
		GivenName:     claimString(p.Claims, "given_name"),
		FamilyName:    claimString(p.Claims, "family_name"),
		Picture:       claimString(p.Claims, "picture"),
	}
	if id.Subject == "" || id.Email == "" || !id.EmailVerified {
		return nil, common.ErrIdentityAssertionInvalid
	}
	return id, nil
}

func claimString(c map[string]any, key string) string {
	s, _ := c[key].(string)
	return s
}

// email_verified arrives as a bool, but some issuers send "true".
func claimBool(c map[string]any, key string) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
