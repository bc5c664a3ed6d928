package verificationtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/models"
)

// PostgresRepository stores email verification and password reset tokens
// over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts t.
func (r *PostgresRepository) Create(ctx context.Context, t *models.VerificationToken) error {
	query := `
		INSERT INTO verification_tokens (id, account_id, kind, token, code, expires_at, requested_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.AccountID, string(t.Kind), t.Token, t.Code, t.ExpiresAt, t.RequestedIP,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume marks a matching unused, unexpired token as used and returns its
// account id. Only one caller can consume a token; the rest get
// common.ErrorNotFound.
func (r *PostgresRepository) Consume(ctx context.Context, token, code string, kind models.VerificationKind, now time.Time) (string, error) {
	query := `
		UPDATE verification_tokens
		SET is_used = TRUE, used_at = $4
		WHERE token = $1 AND code = $2 AND kind = $3 AND NOT is_used AND expires_at > $4
		RETURNING account_id
	`
	var accountID string
	err := r.db.QueryRowContext(ctx, query, token, code, string(kind), now).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return accountID, nil
}

// InvalidateOutstanding retires every unused token of kind for accountID.
func (r *PostgresRepository) InvalidateOutstanding(ctx context.Context, accountID string, kind models.VerificationKind, now time.Time) error {
	query := `
		UPDATE verification_tokens
		SET is_used = TRUE, used_at = $3
		WHERE account_id = $1 AND kind = $2 AND NOT is_used
	`
	if _, err := r.db.ExecContext(ctx, query, accountID, string(kind), now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
