package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/notify"
)

// ChangePassword replaces the password of an authenticated account after
// checking the current one. It does not touch lockout state.
func (s *AuthService) ChangePassword(ctx context.Context, req ChangePasswordRequest) (res *MessageResult, err error) {
	defer s.recoverPanic(ctx, "ChangePassword", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "ChangePassword", err)
	}
	if err := s.changePassword(ctx, req); err != nil {
		return nil, s.fail(ctx, "ChangePassword", err)
	}
	return &MessageResult{Message: MsgPasswordChange}, nil
}

func (s *AuthService) changePassword(ctx context.Context, req ChangePasswordRequest) error {
	accounts := s.repomanager.Accounts(s.db)

	account, err := accounts.FindByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidCredentials
		}
		return err
	}
	if !account.HasPassword() {
		return common.ErrNoPasswordCredential
	}

	ok, err := s.hasher.Verify(req.OldPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	if err := accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", "account_id", account.ID)
	return nil
}

// ForgotPassword starts a password reset. The reply is the same whether or
// not the email belongs to an account, and whether or not the request was
// throttled.
func (s *AuthService) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (res *MessageResult, err error) {
	defer s.recoverPanic(ctx, "ForgotPassword", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "ForgotPassword", err)
	}
	if err := s.forgotPassword(ctx, req); err != nil {
		return nil, s.fail(ctx, "ForgotPassword", err)
	}
	return &MessageResult{Message: MsgResetRequested}, nil
}

func (s *AuthService) forgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	email := models.NormalizeEmail(req.Email)

	allowed, err := s.limiter.Allow(ctx, email)
	if err != nil {
		s.log.Warn(ctx, "reset limiter unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		s.log.Info(ctx, "reset request throttled")
		return nil
	}

	account, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	if !account.HasPassword() {
		return common.ErrNoPasswordCredential
	}
	if !account.IsActive {
		return nil
	}

	var vt *models.VerificationToken
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		vt, err = s.verification.Issue(ctx, tx, account.ID, models.KindPasswordReset, req.OriginIP)
		return err
	})
	if err != nil {
		return err
	}

	s.send(ctx, notify.KindPasswordReset, account.Email, notify.Payload{
		"name":    displayName(account, s.profileOf(ctx, account.ID)),
		"code":    vt.Code,
		"link":    s.link("/reset-password", vt.Token),
		"expires": mailTime(vt.ExpiresAt),
	})
	return nil
}

// ResetPassword consumes a reset token, sets the new password, clears any
// lockout and revokes every refresh token of the account.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) (res *MessageResult, err error) {
	defer s.recoverPanic(ctx, "ResetPassword", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "ResetPassword", err)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, s.fail(ctx, "ResetPassword", fmt.Errorf("error hashing password: %w", err))
	}

	var accountID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		accountID, err = s.verification.Consume(ctx, tx, req.Token, req.Code, models.KindPasswordReset)
		if err != nil {
			return err
		}

		accounts := s.repomanager.Accounts(tx)
		if err := accounts.UpdatePassword(ctx, accountID, hash); err != nil {
			return err
		}
		if err := accounts.SaveLockout(ctx, accountID, s.lockout.RegisterSuccess()); err != nil {
			return err
		}
		_, err = s.tokens.RevokeAll(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "ResetPassword", err)
	}

	s.log.Info(ctx, "password reset", "account_id", accountID)
	return &MessageResult{Message: MsgPasswordReset}, nil
}
