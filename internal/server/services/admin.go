package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/google/uuid"
)

type CreateAdminRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strong_password"`
}

// CreateAdmin provisions an active, verified password account with the Admin
// and Employee roles for an active directory record. It is used by the
// operator seeding tool, not exposed over the network.
func (s *AuthService) CreateAdmin(ctx context.Context, req CreateAdminRequest) (res *AccountSummary, err error) {
	defer s.recoverPanic(ctx, "CreateAdmin", &err)

	if err := s.validate.Struct(req); err != nil {
		return nil, s.fail(ctx, "CreateAdmin", err)
	}

	summary, err := s.createAdmin(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, "CreateAdmin", err)
	}
	return summary, nil
}

func (s *AuthService) createAdmin(ctx context.Context, req CreateAdminRequest) (*AccountSummary, error) {
	email := models.NormalizeEmail(req.Email)

	exists, err := s.repomanager.Accounts(s.db).ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrEmailAlreadyUsed
	}

	rec, err := s.repomanager.Directory(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrDirectoryRecordNotFound
		}
		return nil, err
	}
	if !rec.IsActive() {
		return nil, common.ErrDirectoryRecordInactive
	}
	if rec.IsRegistered || rec.AccountID != nil {
		return nil, common.ErrAlreadyRegistered
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := s.now()
	recordID := rec.ID
	account := &models.Account{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      hash,
		Kind:              models.KindPassword,
		IsActive:          true,
		EmailVerified:     true,
		EmailVerifiedAt:   &now,
		DirectoryRecordID: &recordID,
	}
	profile := &models.Profile{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		PhoneNumber: rec.PhoneNumber,
		Department:  rec.Department,
		Position:    rec.Position,
		Campus:      rec.Campus,
	}
	profile.DisplayName = profile.FullName()
	roles := []string{common.RoleAdmin, common.RoleEmployee}

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
		for _, r := range roles {
			if err := assignRole(ctx, s.repomanager, tx, account.ID, r); err != nil {
				return err
			}
		}

		dir := s.repomanager.Directory(tx)
		ok, err := dir.MarkRegistered(ctx, rec.ID, account.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrAlreadyRegistered
		}
		return dir.MarkEmailVerified(ctx, rec.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "admin account created", "account_id", account.ID)
	summary := toAccountSummary(account, profile, roles, now)
	return &summary, nil
}
