package services

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/logging"
	"github.com/beesrs/identity/internal/server/auth"
	"github.com/beesrs/identity/internal/server/config"
	"github.com/beesrs/identity/internal/server/identity"
	"github.com/beesrs/identity/internal/server/metrics"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/notify"
	"github.com/beesrs/identity/internal/server/repositories/accounts"
	"github.com/beesrs/identity/internal/server/repositories/directory"
	"github.com/beesrs/identity/internal/server/repositories/profiles"
	"github.com/beesrs/identity/internal/server/repositories/refreshtokens"
	"github.com/beesrs/identity/internal/server/repositories/roles"
	"github.com/beesrs/identity/internal/server/repositories/verificationtokens"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// --- in-memory store behind the repository interfaces ---

type memStore struct {
	mu sync.Mutex

	accounts     map[string]*models.Account
	profiles     map[string]*models.Profile
	roleIDs      map[string]int64
	accountRoles map[string][]string
	refresh      map[string]*models.RefreshToken
	verification []*models.VerificationToken
	directory    map[string]*models.DirectoryRecord

	// errs injects a failure for the named operation, e.g. "Accounts.Create".
	errs map[string]error

	// onMarkUsed runs before MarkUsed takes the lock, to simulate a
	// concurrent writer.
	onMarkUsed func()
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     map[string]*models.Account{},
		profiles:     map[string]*models.Profile{},
		roleIDs:      map[string]int64{common.RoleAdmin: 1, common.RoleEmployee: 2, common.RoleGuest: 3},
		accountRoles: map[string][]string{},
		refresh:      map[string]*models.RefreshToken{},
		directory:    map[string]*models.DirectoryRecord{},
		errs:         map[string]error{},
	}
}

func (s *memStore) injected(op string) error {
	return s.errs[op]
}

func (s *memStore) accountByEmail(email string) *models.Account {
	for _, a := range s.accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

func (s *memStore) tokensFor(accountID string) []*models.RefreshToken {
	var out []*models.RefreshToken
	for _, t := range s.refresh {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("Accounts.Create"); err != nil {
		return err
	}
	if r.s.accountByEmail(a.Email) != nil {
		return common.ErrorAlreadyExists
	}
	cp := *a
	r.s.accounts[a.ID] = &cp
	return nil
}

func (r memAccounts) find(pred func(*models.Account) bool) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if pred(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memAccounts) FindByID(_ context.Context, id string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.ID == id })
}

func (r memAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	if err := r.s.injected("Accounts.FindByEmail"); err != nil {
		return nil, err
	}
	return r.find(func(a *models.Account) bool { return a.Email == email })
}

func (r memAccounts) FindByExternalSubject(_ context.Context, subject string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.ExternalSubject != "" && a.ExternalSubject == subject })
}

func (r memAccounts) FindByEmailForUpdate(ctx context.Context, email string) (*models.Account, error) {
	return r.FindByEmail(ctx, email)
}

func (r memAccounts) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.accountByEmail(email) != nil, nil
}

func (r memAccounts) update(id string, fn func(*models.Account)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(a)
	return nil
}

func (r memAccounts) SaveLockout(_ context.Context, id string, st models.LockoutState) error {
	return r.update(id, func(a *models.Account) { a.Lockout = st })
}

func (r memAccounts) UpdateLastLogin(_ context.Context, id string, at time.Time, ip, provider string) error {
	return r.update(id, func(a *models.Account) {
		a.LastLoginAt = &at
		a.LastLoginIP = ip
		a.LastLoginProvider = provider
	})
}

func (r memAccounts) UpdatePassword(_ context.Context, id, hash string) error {
	if err := r.s.injected("Accounts.UpdatePassword"); err != nil {
		return err
	}
	return r.update(id, func(a *models.Account) { a.PasswordHash = hash })
}

func (r memAccounts) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(a *models.Account) {
		a.EmailVerified = true
		a.EmailVerifiedAt = &at
	})
}

func (r memAccounts) LinkExternalSubject(_ context.Context, id, subject string) error {
	return r.update(id, func(a *models.Account) {
		a.ExternalSubject = subject
		if a.Kind == models.KindPassword {
			a.Kind = models.KindBoth
		}
	})
}

type memProfiles struct{ s *memStore }

func (r memProfiles) Create(_ context.Context, p *models.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[p.AccountID]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *p
	r.s.profiles[p.AccountID] = &cp
	return nil
}

func (r memProfiles) FindByAccountID(_ context.Context, accountID string) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[accountID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

type memRoles struct{ s *memStore }

func (r memRoles) FindByName(_ context.Context, name string) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.roleIDs[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.Role{ID: id, Name: name}, nil
}

func (r memRoles) Assign(_ context.Context, accountID string, roleID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for name, id := range r.s.roleIDs {
		if id != roleID {
			continue
		}
		for _, have := range r.s.accountRoles[accountID] {
			if have == name {
				return nil
			}
		}
		r.s.accountRoles[accountID] = append(r.s.accountRoles[accountID], name)
		return nil
	}
	return common.ErrorNotFound
}

func (r memRoles) NamesForAccount(_ context.Context, accountID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]string(nil), r.s.accountRoles[accountID]...), nil
}

type memRefresh struct{ s *memStore }

func (r memRefresh) Create(_ context.Context, t *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("RefreshTokens.Create"); err != nil {
		return err
	}
	cp := *t
	r.s.refresh[t.Token] = &cp
	return nil
}

func (r memRefresh) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memRefresh) MarkUsed(_ context.Context, id string, now time.Time) (bool, error) {
	if r.s.onMarkUsed != nil {
		r.s.onMarkUsed()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refresh {
		if t.ID == id && t.IsActive(now) {
			t.IsUsed = true
			return true, nil
		}
	}
	return false, nil
}

func (r memRefresh) RevokeAllForAccount(_ context.Context, accountID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.refresh {
		if t.AccountID == accountID && !t.IsRevoked {
			t.IsRevoked = true
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

type memVerification struct{ s *memStore }

func (r memVerification) Create(_ context.Context, t *models.VerificationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *t
	r.s.verification = append(r.s.verification, &cp)
	return nil
}

func (r memVerification) Consume(_ context.Context, token, code string, kind models.VerificationKind, now time.Time) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.verification {
		if t.Token == token && t.Code == code && t.Kind == kind && !t.IsUsed && now.Before(t.ExpiresAt) {
			t.IsUsed = true
			t.UsedAt = &now
			return t.AccountID, nil
		}
	}
	return "", common.ErrorNotFound
}

func (r memVerification) InvalidateOutstanding(_ context.Context, accountID string, kind models.VerificationKind, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.verification {
		if t.AccountID == accountID && t.Kind == kind && !t.IsUsed {
			t.IsUsed = true
			t.UsedAt = &now
		}
	}
	return nil
}

type memDirectory struct{ s *memStore }

func (r memDirectory) find(pred func(*models.DirectoryRecord) bool) (*models.DirectoryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.directory {
		if pred(d) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memDirectory) FindByID(_ context.Context, id string) (*models.DirectoryRecord, error) {
	return r.find(func(d *models.DirectoryRecord) bool { return d.ID == id })
}

func (r memDirectory) FindByEmail(_ context.Context, email string) (*models.DirectoryRecord, error) {
	return r.find(func(d *models.DirectoryRecord) bool { return strings.EqualFold(d.Email, email) })
}

func (r memDirectory) FindByEmailAndCode(_ context.Context, email, code string) (*models.DirectoryRecord, error) {
	return r.find(func(d *models.DirectoryRecord) bool {
		return strings.EqualFold(d.Email, email) && d.EmployeeCode == code
	})
}

func (r memDirectory) MarkRegistered(_ context.Context, recordID, accountID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.directory[recordID]
	if !ok || d.IsRegistered || d.AccountID != nil {
		return false, nil
	}
	d.IsRegistered = true
	d.AccountID = &accountID
	d.RegisteredAt = &at
	return true, nil
}

func (r memDirectory) MarkEmailVerified(_ context.Context, recordID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.directory[recordID]
	if !ok {
		return common.ErrorNotFound
	}
	d.EmailVerified = true
	d.EmailVerifiedAt = &at
	return nil
}

type memRepoManager struct{ s *memStore }

func (m memRepoManager) RunMigrations(context.Context, *sql.DB) error            { return nil }
func (m memRepoManager) Accounts(dbx.DBTX) accounts.Repository                  { return memAccounts{m.s} }
func (m memRepoManager) Profiles(dbx.DBTX) profiles.Repository                  { return memProfiles{m.s} }
func (m memRepoManager) Roles(dbx.DBTX) roles.Repository                        { return memRoles{m.s} }
func (m memRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository        { return memRefresh{m.s} }
func (m memRepoManager) VerificationTokens(dbx.DBTX) verificationtokens.Repository { return memVerification{m.s} }
func (m memRepoManager) Directory(dbx.DBTX) directory.Repository                { return memDirectory{m.s} }

// --- collaborators ---

// plainHasher keeps tests fast; argon2 is covered in cryptox.
type plainHasher struct {
	dummyCalls int
}

func (h *plainHasher) Hash(p string) (string, error) { return "plain$" + p, nil }
func (h *plainHasher) Verify(p, enc string) (bool, error) {
	return enc == "plain$"+p, nil
}
func (h *plainHasher) VerifyDummy(string) { h.dummyCalls++ }

type sentMessage struct {
	kind      notify.Kind
	recipient string
	payload   notify.Payload
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, kind notify.Kind, recipient string, payload notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{kind: kind, recipient: recipient, payload: payload})
	return nil
}

func (n *fakeNotifier) last(t *testing.T, kind notify.Kind) sentMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", kind)
	return sentMessage{}
}

func (n *fakeNotifier) count(kind notify.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.kind == kind {
			c++
		}
	}
	return c
}

type fakeIdentity struct {
	ext *identity.ExternalIdentity
	err error
}

func (f *fakeIdentity) Validate(context.Context, string) (*identity.ExternalIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.ext
	return &cp, nil
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

// --- harness ---

type harness struct {
	svc      *AuthService
	store    *memStore
	mock     sqlmock.Sqlmock
	hasher   *plainHasher
	notifier *fakeNotifier
	idp      *fakeIdentity
	limiter  *fakeLimiter
	jwt      *auth.Manager
	logs     *bytes.Buffer
	now      time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    testSecret,
		Issuer:                       "test-issuer",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
		LockoutThreshold:             3,
		LockoutDuration:              30 * time.Minute,
		VerificationTokenValidity:    24 * time.Hour,
		ResetTokenValidity:           time.Hour,
		VerificationCodeLength:       6,
		AllowedDomains:               []string{"beesrs.com"},
		AppURL:                       "https://app.beesrs.com",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig()
	h := &harness{
		store:    newMemStore(),
		mock:     mock,
		hasher:   &plainHasher{},
		notifier: &fakeNotifier{},
		idp:      &fakeIdentity{},
		limiter:  &fakeLimiter{allow: true},
		jwt:      auth.NewManager([]byte(cfg.SecretKey), cfg.Issuer, cfg.AccessTokenValidityDuration),
		logs:     &bytes.Buffer{},
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.svc = NewAuthService(db, memRepoManager{h.store}, cfg, Dependencies{
		Hasher:   h.hasher,
		Tokens:   h.jwt,
		Identity: h.idp,
		Notifier: h.notifier,
		Limiter:  h.limiter,
		Metrics:  metrics.NewRecorder(),
		Logger:   logging.New(h.logs, "info"),
		Clock:    func() time.Time { return h.now },
	})
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

// expectTx queues one committed transaction.
func (h *harness) expectTx() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

// expectRollback queues one rolled back transaction.
func (h *harness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func (h *harness) verify(t *testing.T) {
	t.Helper()
	require.NoError(t, h.mock.ExpectationsWereMet())
}

const (
	goodPassword = "Str0ng!Pass"
	newPassword  = "N3w!Passw0rd"
)

func (h *harness) addDirectoryRecord(email, code, status string) *models.DirectoryRecord {
	rec := &models.DirectoryRecord{
		ID:           "dir-" + code,
		EmployeeCode: code,
		FirstName:    "Dir",
		LastName:     "Person",
		Email:        email,
		PhoneNumber:  "+10000000",
		Department:   "Engineering",
		Position:     "Developer",
		Campus:       "North",
		Status:       status,
	}
	h.store.directory[rec.ID] = rec
	return rec
}

// addAccount stores an active, verified password account with the Employee
// role and a profile.
func (h *harness) addAccount(email string) *models.Account {
	a := &models.Account{
		ID:            "acc-" + strings.Split(email, "@")[0],
		Email:         email,
		PasswordHash:  "plain$" + goodPassword,
		Kind:          models.KindPassword,
		IsActive:      true,
		EmailVerified: true,
	}
	h.store.accounts[a.ID] = a
	h.store.accountRoles[a.ID] = []string{common.RoleEmployee}
	h.store.profiles[a.ID] = &models.Profile{ID: "p-" + a.ID, AccountID: a.ID, FirstName: "Ann", LastName: "Lee"}
	return a
}
