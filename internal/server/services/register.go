package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/notify"
	"github.com/google/uuid"
)

// Register creates a password account for an employee listed in the HR
// directory. The account stays unverified until VerifyEmail succeeds.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (res *MessageResult, err error) {
	defer s.recoverPanic(ctx, "Register", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "Register", err)
	}
	if err := s.register(ctx, req); err != nil {
		return nil, s.fail(ctx, "Register", err)
	}
	return &MessageResult{Message: MsgRegistered}, nil
}

func (s *AuthService) register(ctx context.Context, req RegisterRequest) error {
	email := models.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.EmployeeCode)

	exists, err := s.repomanager.Accounts(s.db).ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrEmailAlreadyUsed
	}

	rec, err := s.repomanager.Directory(s.db).FindByEmailAndCode(ctx, email, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrDirectoryRecordNotFound
		}
		return err
	}
	if !rec.IsActive() {
		return common.ErrDirectoryRecordInactive
	}
	if rec.IsRegistered || rec.AccountID != nil {
		return common.ErrAlreadyRegistered
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	recordID := rec.ID
	account := &models.Account{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      hash,
		Kind:              models.KindPassword,
		IsActive:          true,
		DirectoryRecordID: &recordID,
	}
	profile := &models.Profile{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		PhoneNumber: firstNonEmpty(strings.TrimSpace(req.PhoneNumber), rec.PhoneNumber),
		Department:  rec.Department,
		Position:    rec.Position,
		Campus:      rec.Campus,
	}
	profile.DisplayName = profile.FullName()

	var vt *models.VerificationToken
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).Create(ctx, account); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrEmailAlreadyUsed
			}
			return err
		}
		if err := s.repomanager.Profiles(tx).Create(ctx, profile); err != nil {
			return fmt.Errorf("error creating profile: %w", err)
		}
		if err := assignRole(ctx, s.repomanager, tx, account.ID, common.RoleEmployee); err != nil {
			return err
		}

		ok, err := s.repomanager.Directory(tx).MarkRegistered(ctx, rec.ID, account.ID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrAlreadyRegistered
		}

		vt, err = s.verification.Issue(ctx, tx, account.ID, models.KindEmailVerification, "")
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "account registered", "account_id", account.ID)
	s.send(ctx, notify.KindEmailVerification, account.Email, notify.Payload{
		"name":    displayName(account, profile),
		"code":    vt.Code,
		"link":    s.link("/verify-email", vt.Token),
		"expires": mailTime(vt.ExpiresAt),
	})
	return nil
}

// VerifyEmail consumes an email verification token and marks the account,
// and its directory record when linked, as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (res *MessageResult, err error) {
	defer s.recoverPanic(ctx, "VerifyEmail", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "VerifyEmail", err)
	}

	var account *models.Account
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accountID, err := s.verification.Consume(ctx, tx, req.Token, req.Code, models.KindEmailVerification)
		if err != nil {
			return err
		}

		accounts := s.repomanager.Accounts(tx)
		account, err = accounts.FindByID(ctx, accountID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := accounts.MarkEmailVerified(ctx, account.ID, now); err != nil {
			return err
		}
		if account.DirectoryRecordID != nil {
			return s.repomanager.Directory(tx).MarkEmailVerified(ctx, *account.DirectoryRecordID, now)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "VerifyEmail", err)
	}

	s.log.Info(ctx, "email verified", "account_id", account.ID)
	s.send(ctx, notify.KindWelcome, account.Email, notify.Payload{
		"name": displayName(account, s.profileOf(ctx, account.ID)),
	})
	return &MessageResult{Message: MsgEmailVerified}, nil
}
