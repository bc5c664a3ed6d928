// Package accounts persists identity accounts and their lockout and
// last-login state.
package accounts

import (
	"context"
	"time"

	"github.com/beesrs/identity/internal/server/models"
)

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByExternalSubject(ctx context.Context, subject string) (*models.Account, error)
	// FindByEmailForUpdate locks the row until the surrounding tx ends.
	FindByEmailForUpdate(ctx context.Context, email string) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SaveLockout(ctx context.Context, id string, state models.LockoutState) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time, ip, provider string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	LinkExternalSubject(ctx context.Context, id, subject string) error
}
