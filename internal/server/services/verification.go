package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const verificationTokenBytes = 32

// VerificationFlow issues and consumes single-use token and code pairs.
type VerificationFlow struct {
	repomanager repomanager.RepositoryManager
	codeLength  int
	validity    map[models.VerificationKind]time.Duration
	now         func() time.Time
}

func NewVerificationFlow(m repomanager.RepositoryManager, codeLength int, emailValidity, resetValidity time.Duration, now func() time.Time) *VerificationFlow {
	return &VerificationFlow{
		repomanager: m,
		codeLength:  codeLength,
		validity: map[models.VerificationKind]time.Duration{
			models.KindEmailVerification: emailValidity,
			models.KindPasswordReset:     resetValidity,
		},
		now: now,
	}
}

// Issue invalidates any outstanding token of the same kind for the account
// and stores a fresh one.
func (f *VerificationFlow) Issue(ctx context.Context, db dbx.DBTX, accountID string, kind models.VerificationKind, requestedIP string) (*models.VerificationToken, error) {
	validity, ok := f.validity[kind]
	if !ok {
		return nil, fmt.Errorf("unknown verification kind %q", kind)
	}

	now := f.now()
	repo := f.repomanager.VerificationTokens(db)
	if err := repo.InvalidateOutstanding(ctx, accountID, kind, now); err != nil {
		return nil, err
	}

	value, err := common.MakeRandURLString(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating verification token: %w", err)
	}
	code, err := common.MakeRandDigits(f.codeLength)
	if err != nil {
		return nil, fmt.Errorf("error generating verification code: %w", err)
	}

	vt := &models.VerificationToken{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        kind,
		Token:       value,
		Code:        code,
		ExpiresAt:   now.Add(validity),
		RequestedIP: requestedIP,
	}
	if err := repo.Create(ctx, vt); err != nil {
		return nil, fmt.Errorf("error saving verification token: %w", err)
	}
	return vt, nil
}

// Consume marks the matching token used and returns its account id.
// Any mismatch is reported as common.ErrTokenInvalidOrExpired.
func (f *VerificationFlow) Consume(ctx context.Context, db dbx.DBTX, token, code string, kind models.VerificationKind) (string, error) {
	accountID, err := f.repomanager.VerificationTokens(db).Consume(ctx,
		strings.TrimSpace(token), strings.TrimSpace(code), kind, f.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrTokenInvalidOrExpired
		}
		return "", err
	}
	return accountID, nil
}
