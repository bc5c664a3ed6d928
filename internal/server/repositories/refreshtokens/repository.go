// Package refreshtokens declares the repository contract for opaque refresh
// tokens. Rows are append-only: they are only ever marked used or revoked.
package refreshtokens

import (
	"context"
	"time"

	"github.com/beesrs/identity/internal/server/models"
)

// Repository persists refresh tokens.
type Repository interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find returns the row for an opaque token value, or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// MarkUsed flips is_used for a token that is still active at now.
	// It reports false when another writer got there first or the token
	// is no longer active.
	MarkUsed(ctx context.Context, id string, now time.Time) (bool, error)

	// RevokeAllForAccount revokes every non-revoked token of the account and
	// returns how many rows changed. Calling it twice is harmless.
	RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error)
}
