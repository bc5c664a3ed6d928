// Package directory reads and updates HR directory records that gate account
// registration and provisioning.
package directory

import (
	"context"
	"time"

	"github.com/beesrs/identity/internal/server/models"
)

// Repository is the HR directory store.
type Repository interface {
	FindByID(ctx context.Context, id string) (*models.DirectoryRecord, error)
	FindByEmail(ctx context.Context, email string) (*models.DirectoryRecord, error)
	FindByEmailAndCode(ctx context.Context, email, employeeCode string) (*models.DirectoryRecord, error)

	// MarkRegistered links the record to accountID if it is not linked yet.
	// It reports false when the record was already registered.
	MarkRegistered(ctx context.Context, recordID, accountID string, at time.Time) (bool, error)

	MarkEmailVerified(ctx context.Context, recordID string, at time.Time) error
}
