package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/models"
)

// PostgresRepository stores profiles over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts p.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, account_id, first_name, last_name, display_name, phone_number,
		    department, position, campus, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.AccountID, p.FirstName, p.LastName, p.DisplayName, p.PhoneNumber,
		p.Department, p.Position, p.Campus, p.AvatarURL,
	).Scan(&p.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "profiles_account_id_key") {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByAccountID returns the profile of an account or common.ErrorNotFound.
func (r *PostgresRepository) FindByAccountID(ctx context.Context, accountID string) (*models.Profile, error) {
	query := `
		SELECT id, account_id, first_name, last_name, display_name, phone_number,
		       department, position, campus, avatar_url, created_at
		FROM profiles
		WHERE account_id = $1
	`
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&p.ID, &p.AccountID, &p.FirstName, &p.LastName, &p.DisplayName, &p.PhoneNumber,
		&p.Department, &p.Position, &p.Campus, &p.AvatarURL, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}
