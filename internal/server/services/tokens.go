package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/auth"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 32

// TokenIssuer mints access tokens and manages the refresh token chain.
type TokenIssuer struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	jwt             *auth.Manager
	refreshValidity time.Duration
	now             func() time.Time
}

func NewTokenIssuer(db *sql.DB, m repomanager.RepositoryManager, jwt *auth.Manager, refreshValidity time.Duration, now func() time.Time) *TokenIssuer {
	return &TokenIssuer{db: db, repomanager: m, jwt: jwt, refreshValidity: refreshValidity, now: now}
}

// IssuePair signs an access token for a and stores a new refresh token
// through db, which is usually the caller's transaction.
func (t *TokenIssuer) IssuePair(ctx context.Context, db dbx.DBTX, a *models.Account, roles []string, deviceID, originIP string) (*TokenPair, error) {
	access, exp, err := t.jwt.Issue(a.ID, a.Email, roles)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}

	refresh, err := t.issueRefreshToken(ctx, db, a.ID, deviceID, originIP)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (t *TokenIssuer) issueRefreshToken(ctx context.Context, db dbx.DBTX, accountID, deviceID, originIP string) (string, error) {
	value, err := common.MakeRandURLString(refreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("error generating refresh token: %w", err)
	}

	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Token:     value,
		ExpiresAt: t.now().Add(t.refreshValidity),
		DeviceID:  deviceID,
		OriginIP:  originIP,
	}
	if err := t.repomanager.RefreshTokens(db).Create(ctx, token); err != nil {
		return "", fmt.Errorf("error saving refresh token: %w", err)
	}
	return value, nil
}

// Rotate exchanges an active refresh token for a new pair. expiredAccess must
// be an access token signed by this service for the same account; its expiry
// is ignored. The old token is marked used in the same transaction that
// stores the new one, so of two concurrent calls only one succeeds.
func (t *TokenIssuer) Rotate(ctx context.Context, refreshToken, expiredAccess, deviceID, originIP string) (*TokenPair, *models.Account, []string, error) {
	now := t.now()

	stored, err := t.repomanager.RefreshTokens(t.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, nil, common.ErrTokenInvalidOrExpired
		}
		return nil, nil, nil, err
	}
	if !stored.IsActive(now) {
		return nil, nil, nil, common.ErrTokenInvalidOrExpired
	}

	claims, err := t.jwt.IdentityFromExpired(expiredAccess)
	if err != nil || claims.AccountID != stored.AccountID {
		return nil, nil, nil, common.ErrTokenInvalidOrExpired
	}

	account, err := t.repomanager.Accounts(t.db).FindByID(ctx, stored.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, nil, common.ErrTokenInvalidOrExpired
		}
		return nil, nil, nil, err
	}
	if !account.IsActive {
		return nil, nil, nil, common.ErrAccountDisabled
	}

	if deviceID == "" {
		deviceID = stored.DeviceID
	}

	var (
		pair  *TokenPair
		roles []string
	)
	err = dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ok, err := t.repomanager.RefreshTokens(tx).MarkUsed(ctx, stored.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrTokenInvalidOrExpired
		}

		roles, err = t.repomanager.Roles(tx).NamesForAccount(ctx, account.ID)
		if err != nil {
			return err
		}

		pair, err = t.IssuePair(ctx, tx, account, roles, deviceID, originIP)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return pair, account, roles, nil
}

// RevokeAll revokes every outstanding refresh token of the account.
func (t *TokenIssuer) RevokeAll(ctx context.Context, db dbx.DBTX, accountID string) (int64, error) {
	return t.repomanager.RefreshTokens(db).RevokeAllForAccount(ctx, accountID, t.now())
}
