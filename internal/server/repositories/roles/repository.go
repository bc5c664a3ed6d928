// Package roles reads the seeded role catalogue and assigns roles to accounts.
package roles

import (
	"context"

	"github.com/beesrs/identity/internal/server/models"
)

// Repository reads roles and assigns them to accounts.
type Repository interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
	Assign(ctx context.Context, accountID string, roleID int64) error
	NamesForAccount(ctx context.Context, accountID string) ([]string, error)
}
