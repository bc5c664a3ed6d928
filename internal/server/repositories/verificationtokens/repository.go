// Package verificationtokens stores single-use token and code pairs used for
// email verification and password reset.
package verificationtokens

import (
	"context"
	"time"

	"github.com/beesrs/identity/internal/server/models"
)

// Repository persists single-use verification tokens.
type Repository interface {
	Create(ctx context.Context, token *models.VerificationToken) error

	// Consume atomically marks the matching token used and returns its
	// account id. A token that is unknown, already used, expired, of another
	// kind or paired with a different code yields common.ErrorNotFound.
	Consume(ctx context.Context, token, code string, kind models.VerificationKind, now time.Time) (string, error)

	// InvalidateOutstanding marks every unused token of kind for the account
	// as used.
	InvalidateOutstanding(ctx context.Context, accountID string, kind models.VerificationKind, now time.Time) error
}
