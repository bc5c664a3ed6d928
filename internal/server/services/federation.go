package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/identity"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// IdentityFederation maps a verified external identity onto a local account,
// provisioning one from the HR directory on first sign-in.
type IdentityFederation struct {
	repomanager repomanager.RepositoryManager
	allowed     map[string]struct{}
	now         func() time.Time
}

func NewIdentityFederation(m repomanager.RepositoryManager, allowedDomains []string, now func() time.Time) *IdentityFederation {
	allowed := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[models.NormalizeEmail(d)] = struct{}{}
	}
	return &IdentityFederation{repomanager: m, allowed: allowed, now: now}
}

// CheckDomain rejects addresses outside the allowlist. An empty allowlist
// rejects everything.
func (f *IdentityFederation) CheckDomain(email string) error {
	if _, ok := f.allowed[models.EmailDomain(email)]; !ok {
		return common.ErrDomainNotAllowed
	}
	return nil
}

// Resolve finds or provisions the account for ext inside tx. It reports
// whether a new account was created. Last-login bookkeeping is updated on
// every path.
func (f *IdentityFederation) Resolve(ctx context.Context, tx dbx.DBTX, ext *identity.ExternalIdentity, originIP string) (*models.Account, bool, error) {
	accounts := f.repomanager.Accounts(tx)
	now := f.now()

	account, err := accounts.FindByExternalSubject(ctx, ext.Subject)
	if errors.Is(err, common.ErrorNotFound) {
		account, err = f.linkByEmail(ctx, tx, ext)
	}
	provisioned := false
	if errors.Is(err, common.ErrorNotFound) {
		account, err = f.provision(ctx, tx, ext)
		provisioned = true
	}
	if err != nil {
		return nil, false, err
	}

	if err := accounts.UpdateLastLogin(ctx, account.ID, now, originIP, common.ProviderGoogle); err != nil {
		return nil, false, err
	}
	return account, provisioned, nil
}

// linkByEmail attaches ext.Subject to an existing account with the same
// email and marks the address verified. An account already linked to another
// subject is refused.
func (f *IdentityFederation) linkByEmail(ctx context.Context, tx dbx.DBTX, ext *identity.ExternalIdentity) (*models.Account, error) {
	accounts := f.repomanager.Accounts(tx)

	account, err := accounts.FindByEmail(ctx, models.NormalizeEmail(ext.Email))
	if err != nil {
		return nil, err
	}

	switch account.ExternalSubject {
	case ext.Subject:
		return account, nil
	case "":
		if err := accounts.LinkExternalSubject(ctx, account.ID, ext.Subject); err != nil {
			return nil, err
		}
		account.ExternalSubject = ext.Subject
		if account.Kind == models.KindPassword {
			account.Kind = models.KindBoth
		}
	default:
		return nil, common.ErrIdentityAssertionInvalid
	}

	if !account.EmailVerified {
		if err := f.markVerified(ctx, tx, account); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// markVerified records that the provider proved ownership of the address,
// on the account and on its directory record.
func (f *IdentityFederation) markVerified(ctx context.Context, tx dbx.DBTX, account *models.Account) error {
	now := f.now()
	if err := f.repomanager.Accounts(tx).MarkEmailVerified(ctx, account.ID, now); err != nil {
		return err
	}
	if account.DirectoryRecordID != nil {
		if err := f.repomanager.Directory(tx).MarkEmailVerified(ctx, *account.DirectoryRecordID, now); err != nil {
			return err
		}
	}
	account.EmailVerified = true
	account.EmailVerifiedAt = &now
	return nil
}

func (f *IdentityFederation) provision(ctx context.Context, tx dbx.DBTX, ext *identity.ExternalIdentity) (*models.Account, error) {
	email := models.NormalizeEmail(ext.Email)
	dir := f.repomanager.Directory(tx)

	rec, err := dir.FindByEmail(ctx, email)
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

	now := f.now()
	recordID := rec.ID
	account := &models.Account{
		ID:                uuid.NewString(),
		Email:             email,
		Kind:              models.KindFederated,
		IsActive:          true,
		EmailVerified:     true,
		EmailVerifiedAt:   &now,
		ExternalSubject:   ext.Subject,
		DirectoryRecordID: &recordID,
	}
	if err := f.repomanager.Accounts(tx).Create(ctx, account); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrAlreadyRegistered
		}
		return nil, err
	}

	profile := &models.Profile{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		FirstName:   firstNonEmpty(ext.GivenName, rec.FirstName),
		LastName:    firstNonEmpty(ext.FamilyName, rec.LastName),
		PhoneNumber: rec.PhoneNumber,
		Department:  rec.Department,
		Position:    rec.Position,
		Campus:      rec.Campus,
		AvatarURL:   ext.Picture,
	}
	profile.DisplayName = profile.FullName()
	if err := f.repomanager.Profiles(tx).Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("error creating profile: %w", err)
	}

	if err := assignRole(ctx, f.repomanager, tx, account.ID, common.RoleEmployee); err != nil {
		return nil, err
	}

	ok, err := dir.MarkRegistered(ctx, rec.ID, account.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrAlreadyRegistered
	}
	if err := dir.MarkEmailVerified(ctx, rec.ID, now); err != nil {
		return nil, err
	}

	return account, nil
}

func assignRole(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, accountID, name string) error {
	roles := m.Roles(tx)
	role, err := roles.FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("error finding role %s: %w", name, err)
	}
	return roles.Assign(ctx, accountID, role.ID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
