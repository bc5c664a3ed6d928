// Package profiles persists the personal profile attached to each account.
package profiles

import (
	"context"

	"github.com/beesrs/identity/internal/server/models"
)

// Repository persists account profiles.
type Repository interface {
	Create(ctx context.Context, profile *models.Profile) error
	FindByAccountID(ctx context.Context, accountID string) (*models.Profile, error)
}
