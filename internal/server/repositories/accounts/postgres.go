package accounts

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

const selectColumns = `id, email, password_hash, account_type, is_active, email_verified,
		email_verified_at, failed_login_attempts, last_failed_login_at, locked_until, lock_reason,
		last_login_at, last_login_ip, last_login_provider, google_id, hr_employee_id,
		created_at, updated_at`

// PostgresRepository stores accounts over dbx.DBTX (satisfied by *sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a. A duplicate email returns common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query :=
		`INSERT INTO accounts (id, email, password_hash, account_type, is_active, email_verified,
		     email_verified_at, google_id, hr_employee_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Email, a.PasswordHash, string(a.Kind), a.IsActive, a.EmailVerified,
		a.EmailVerifiedAt, nullString(a.ExternalSubject), a.DirectoryRecordID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, "accounts_email_key") {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByID returns the account with id or common.ErrorNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByEmail looks up a normalized email. If not found, it returns
// common.ErrorNotFound.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE email = $1`
	return r.findOne(ctx, query, email)
}

// FindByExternalSubject returns the account linked to a Google subject.
func (r *PostgresRepository) FindByExternalSubject(ctx context.Context, subject string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE google_id = $1`
	return r.findOne(ctx, query, subject)
}

// FindByEmailForUpdate is FindByEmail holding a row lock until the
// surrounding transaction ends.
func (r *PostgresRepository) FindByEmailForUpdate(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE email = $1 FOR UPDATE`
	return r.findOne(ctx, query, email)
}

// ExistsByEmail reports whether an account uses email.
func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// SaveLockout overwrites the failed-attempt counter and lock fields.
func (r *PostgresRepository) SaveLockout(ctx context.Context, id string, s models.LockoutState) error {
	query :=
		`UPDATE accounts
		 SET failed_login_attempts = $2, last_failed_login_at = $3, locked_until = $4, lock_reason = $5,
		     updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, s.FailedAttempts, s.LastFailedAt, s.LockedUntil, s.LockReason)
}

// UpdateLastLogin records a successful sign-in.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time, ip, provider string) error {
	query :=
		`UPDATE accounts
		 SET last_login_at = $2, last_login_ip = $3, last_login_provider = $4, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, at, ip, provider)
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	query :=
		`UPDATE accounts
		 SET password_hash = $2, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, hash)
}

// MarkEmailVerified sets the verified flag and timestamp.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE accounts
		 SET email_verified = TRUE, email_verified_at = $2, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, at)
}

// LinkExternalSubject records the federated subject on an existing account.
// A password account becomes "both".
func (r *PostgresRepository) LinkExternalSubject(ctx context.Context, id, subject string) error {
	query :=
		`UPDATE accounts
		 SET google_id = $2,
		     account_type = CASE WHEN account_type = 'password' THEN 'both' ELSE account_type END,
		     updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, subject)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a                                          models.Account
		kind                                       string
		verifiedAt, lastFailed, lockedUntil, login sql.NullTime
		googleID, hrID                             sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &kind, &a.IsActive, &a.EmailVerified,
		&verifiedAt, &a.Lockout.FailedAttempts, &lastFailed, &lockedUntil, &a.Lockout.LockReason,
		&login, &a.LastLoginIP, &a.LastLoginProvider, &googleID, &hrID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind = models.AccountKind(kind)
	a.EmailVerifiedAt = timePtr(verifiedAt)
	a.Lockout.LastFailedAt = timePtr(lastFailed)
	a.Lockout.LockedUntil = timePtr(lockedUntil)
	a.LastLoginAt = timePtr(login)
	a.ExternalSubject = googleID.String
	if hrID.Valid {
		a.DirectoryRecordID = &hrID.String
	}
	return &a, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
