package services

import (
	"context"
	"errors"
	"time"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/notify"
)

// Login authenticates an email and password and returns a token pair.
//
// Unknown emails and wrong passwords fail identically. Every failed password
// check against an existing account counts toward lockout, including accounts
// that have no password at all.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (res *AuthResult, err error) {
	defer s.recoverPanic(ctx, "Login", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "Login", err)
	}

	res, err = s.login(ctx, req)
	if err != nil {
		s.metrics.LoginAttempt(common.ProviderPassword, outcome(err))
		return nil, s.fail(ctx, "Login", err)
	}
	s.metrics.LoginAttempt(common.ProviderPassword, "success")
	return res, nil
}

func (s *AuthService) login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := models.NormalizeEmail(req.Email)

	account, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(req.Password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if locked, until := s.lockout.IsLocked(account.Lockout, now); locked {
		return nil, &common.AccountLockedError{Until: until}
	}

	ok := false
	if account.HasPassword() {
		ok, err = s.hasher.Verify(req.Password, account.PasswordHash)
		if err != nil {
			return nil, err
		}
	} else {
		s.hasher.VerifyDummy(req.Password)
	}
	if !ok {
		return nil, s.registerFailure(ctx, email)
	}

	if !account.EmailVerified {
		return nil, common.ErrEmailNotVerified
	}
	if !account.IsActive {
		return nil, common.ErrAccountDisabled
	}

	var (
		pair  *TokenPair
		roles []string
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)
		if account.Lockout.FailedAttempts > 0 || account.Lockout.LockedUntil != nil {
			if err := accounts.SaveLockout(ctx, account.ID, s.lockout.RegisterSuccess()); err != nil {
				return err
			}
		}
		if err := accounts.UpdateLastLogin(ctx, account.ID, now, req.OriginIP, common.ProviderPassword); err != nil {
			return err
		}

		var err error
		roles, err = s.repomanager.Roles(tx).NamesForAccount(ctx, account.ID)
		if err != nil {
			return err
		}
		pair, err = s.tokens.IssuePair(ctx, tx, account, roles, req.DeviceID, req.OriginIP)
		return err
	})
	if err != nil {
		return nil, err
	}

	account.Lockout = models.LockoutState{}
	account.LastLoginAt = &now
	s.log.Info(ctx, "login succeeded", "account_id", account.ID, "provider", common.ProviderPassword)

	return toAuthResult(pair, account, s.profileOf(ctx, account.ID), roles, now), nil
}

// registerFailure counts one failed attempt under a row lock so concurrent
// failures are never lost, then notifies the owner if the account locked.
func (s *AuthService) registerFailure(ctx context.Context, email string) error {
	var (
		account   *models.Account
		locked    bool
		until     time.Time
		remaining int
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)

		var err error
		account, err = accounts.FindByEmailForUpdate(ctx, email)
		if err != nil {
			return err
		}

		now := s.now()
		// Locked by a concurrent failure since the caller's read.
		if already, _ := s.lockout.IsLocked(account.Lockout, now); already {
			return nil
		}

		var next models.LockoutState
		next, locked = s.lockout.RegisterFailure(account.Lockout, now)
		if locked {
			until = *next.LockedUntil
		}
		remaining = s.lockout.Remaining(next)
		return accounts.SaveLockout(ctx, account.ID, next)
	})
	if err != nil {
		return err
	}
	if !locked {
		s.log.Info(ctx, "login failed", "account_id", account.ID, "remaining_attempts", remaining)
	}

	if locked {
		s.metrics.Lockout()
		s.log.Warn(ctx, "account locked", "account_id", account.ID, "until", until)
		s.send(ctx, notify.KindAccountLocked, account.Email, notify.Payload{
			"name":  displayName(account, s.profileOf(ctx, account.ID)),
			"until": mailTime(until),
		})
	}
	return common.ErrInvalidCredentials
}

// GoogleLogin signs in with a Google ID token, provisioning an account from
// the HR directory when the identity is new. A locked account stays locked
// for every provider.
func (s *AuthService) GoogleLogin(ctx context.Context, req GoogleLoginRequest) (res *AuthResult, err error) {
	defer s.recoverPanic(ctx, "GoogleLogin", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "GoogleLogin", err)
	}

	res, err = s.googleLogin(ctx, req)
	if err != nil {
		s.metrics.LoginAttempt(common.ProviderGoogle, outcome(err))
		return nil, s.fail(ctx, "GoogleLogin", err)
	}
	s.metrics.LoginAttempt(common.ProviderGoogle, "success")
	return res, nil
}

func (s *AuthService) googleLogin(ctx context.Context, req GoogleLoginRequest) (*AuthResult, error) {
	ext, err := s.identity.Validate(ctx, req.IDToken)
	if err != nil {
		if errors.Is(err, common.ErrIdentityAssertionInvalid) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.federation.CheckDomain(ext.Email); err != nil {
		return nil, err
	}

	var (
		account     *models.Account
		provisioned bool
		pair        *TokenPair
		roles       []string
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		account, provisioned, err = s.federation.Resolve(ctx, tx, ext, req.OriginIP)
		if err != nil {
			return err
		}
		if locked, until := s.lockout.IsLocked(account.Lockout, s.now()); locked {
			return &common.AccountLockedError{Until: until}
		}
		if !account.IsActive {
			return common.ErrAccountDisabled
		}

		roles, err = s.repomanager.Roles(tx).NamesForAccount(ctx, account.ID)
		if err != nil {
			return err
		}
		pair, err = s.tokens.IssuePair(ctx, tx, account, roles, req.DeviceID, req.OriginIP)
		return err
	})
	if err != nil {
		return nil, err
	}

	if provisioned {
		s.metrics.Provisioned()
		s.log.Info(ctx, "account provisioned from directory", "account_id", account.ID)
	}
	s.log.Info(ctx, "login succeeded", "account_id", account.ID, "provider", common.ProviderGoogle)

	return toAuthResult(pair, account, s.profileOf(ctx, account.ID), roles, s.now()), nil
}

// RefreshToken rotates a refresh token. The caller presents the expired
// access token it is replacing along with the refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (res *AuthResult, err error) {
	defer s.recoverPanic(ctx, "RefreshToken", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "RefreshToken", err)
	}

	pair, account, roles, err := s.tokens.Rotate(ctx, req.RefreshToken, req.AccessToken, req.DeviceID, req.OriginIP)
	if err != nil {
		s.metrics.RefreshRotation(outcome(err))
		return nil, s.fail(ctx, "RefreshToken", err)
	}
	s.metrics.RefreshRotation("success")

	return toAuthResult(pair, account, s.profileOf(ctx, account.ID), roles, s.now()), nil
}

// Logout revokes every refresh token of the account. Access tokens already
// issued stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, accountID string) (res *MessageResult, err error) {
	defer s.recoverPanic(ctx, "Logout", &err)

	if accountID == "" {
		return nil, &common.ValidationError{Fields: map[string]string{"account_id": "is required"}}
	}

	n, err := s.tokens.RevokeAll(ctx, s.db, accountID)
	if err != nil {
		return nil, s.fail(ctx, "Logout", err)
	}
	s.log.Info(ctx, "logged out", "account_id", accountID, "revoked", n)
	return &MessageResult{Message: MsgLoggedOut}, nil
}

// outcome labels err for metrics.
func outcome(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrAccountLocked):
		return "locked"
	case errors.Is(err, common.ErrEmailNotVerified):
		return "unverified"
	case errors.Is(err, common.ErrAccountDisabled):
		return "disabled"
	case errors.Is(err, common.ErrTokenInvalidOrExpired):
		return "invalid_token"
	case errors.Is(err, common.ErrDomainNotAllowed):
		return "domain_not_allowed"
	case common.IsDomainError(err):
		return "rejected"
	default:
		return "error"
	}
}
