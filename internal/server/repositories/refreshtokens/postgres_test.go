package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	exp := time.Now().Add(7 * 24 * time.Hour)
	created := time.Now()

	q := `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+created_at\s*$`
	mock.ExpectQuery(q).
		WithArgs("rt-1", "acc-1", "tok123", exp, "laptop", "10.0.0.1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	tok := &models.RefreshToken{ID: "rt-1", AccountID: "acc-1", Token: "tok123", ExpiresAt: exp, DeviceID: "laptop", OriginIP: "10.0.0.1"}
	require.NoError(t, repo.Create(context.Background(), tok))
	assert.Equal(t, created, tok.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+refresh_tokens`).WillReturnError(errors.New("insert failed"))

	err := repo.Create(context.Background(), &models.RefreshToken{})
	if err == nil || !regexp.MustCompile(`db error: .*insert failed`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	exp := time.Now().Add(time.Hour)
	revoked := time.Now()

	rows := sqlmock.NewRows([]string{"id", "account_id", "token", "expires_at", "is_used", "is_revoked", "revoked_at", "device_id", "origin_ip", "created_at"}).
		AddRow("rt-1", "acc-1", "tok", exp, false, true, revoked, "", "", time.Now())
	mock.ExpectQuery(`(?s)FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1`).
		WithArgs("tok").
		WillReturnRows(rows)

	got, err := repo.Find(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.AccountID)
	assert.True(t, got.IsRevoked)
	require.NotNil(t, got.RevokedAt)
}

func TestFind_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+refresh_tokens`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMarkUsed_FirstWriterWins(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	q := `(?s)UPDATE\s+refresh_tokens\s+SET\s+is_used\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s+AND\s+NOT\s+is_used\s+AND\s+NOT\s+is_revoked\s+AND\s+expires_at\s*>\s*\$2`
	mock.ExpectExec(q).WithArgs("rt-1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("rt-1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkUsed(context.Background(), "rt-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(context.Background(), "rt-1", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkUsed_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+refresh_tokens`).WillReturnError(errors.New("db down"))

	_, err := repo.MarkUsed(context.Background(), "rt-1", time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestRevokeAllForAccount_Idempotent(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	q := `(?s)UPDATE\s+refresh_tokens\s+SET\s+is_revoked\s*=\s*TRUE,\s*revoked_at\s*=\s*\$2\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+NOT\s+is_revoked`
	mock.ExpectExec(q).WithArgs("acc-1", now).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q).WithArgs("acc-1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.RevokeAllForAccount(context.Background(), "acc-1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = repo.RevokeAllForAccount(context.Background(), "acc-1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
