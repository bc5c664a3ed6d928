package directory

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

const selectColumns = `id, employee_code, first_name, last_name, company_email, phone_number,
		department, position, campus, status, is_registered, account_id, registered_at,
		is_email_verified, email_verified_at`

// PostgresRepository reads and updates hr_employees over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByID returns the record with id or common.ErrorNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.DirectoryRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM hr_employees WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByEmail matches company_email case-insensitively. If not found, it
// returns common.ErrorNotFound.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.DirectoryRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM hr_employees WHERE lower(company_email) = $1`
	return r.findOne(ctx, query, email)
}

// FindByEmailAndCode returns the record matching both the email and the
// employee code.
func (r *PostgresRepository) FindByEmailAndCode(ctx context.Context, email, employeeCode string) (*models.DirectoryRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM hr_employees WHERE lower(company_email) = $1 AND employee_code = $2`
	return r.findOne(ctx, query, email, employeeCode)
}

// MarkRegistered links an unregistered record to accountID. It reports
// false when another account got there first.
func (r *PostgresRepository) MarkRegistered(ctx context.Context, recordID, accountID string, at time.Time) (bool, error) {
	query := `
		UPDATE hr_employees
		SET is_registered = TRUE, account_id = $2, registered_at = $3
		WHERE id = $1 AND NOT is_registered AND account_id IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, recordID, accountID, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// MarkEmailVerified sets the record's verified flag and timestamp.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, recordID string, at time.Time) error {
	query := `
		UPDATE hr_employees
		SET is_email_verified = TRUE, email_verified_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, recordID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*models.DirectoryRecord, error) {
	var (
		rec                      models.DirectoryRecord
		accountID                sql.NullString
		registeredAt, verifiedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.ID, &rec.EmployeeCode, &rec.FirstName, &rec.LastName, &rec.Email, &rec.PhoneNumber,
		&rec.Department, &rec.Position, &rec.Campus, &rec.Status, &rec.IsRegistered, &accountID, &registeredAt,
		&rec.EmailVerified, &verifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if accountID.Valid {
		rec.AccountID = &accountID.String
	}
	if registeredAt.Valid {
		rec.RegisteredAt = &registeredAt.Time
	}
	if verifiedAt.Valid {
		rec.EmailVerifiedAt = &verifiedAt.Time
	}
	return &rec, nil
}
