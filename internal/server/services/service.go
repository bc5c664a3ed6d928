// Package services contains the identity use cases. AuthService is the
// single entry point used by the transport layer; it composes the token,
// verification and federation components defined alongside it.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beesrs/identity/internal/common"
	"github.com/beesrs/identity/internal/logging"
	"github.com/beesrs/identity/internal/server/auth"
	"github.com/beesrs/identity/internal/server/config"
	"github.com/beesrs/identity/internal/server/identity"
	"github.com/beesrs/identity/internal/server/limiters"
	"github.com/beesrs/identity/internal/server/lockout"
	"github.com/beesrs/identity/internal/server/metrics"
	"github.com/beesrs/identity/internal/server/models"
	"github.com/beesrs/identity/internal/server/notify"
	"github.com/beesrs/identity/internal/server/repositories/repomanager"
)

// PasswordHasher is satisfied by *cryptox.Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	// VerifyDummy burns the same time as Verify against a throwaway hash.
	VerifyDummy(password string)
}

// Dependencies are the collaborators AuthService needs beyond the database.
type Dependencies struct {
	Hasher   PasswordHasher
	Tokens   *auth.Manager
	Identity identity.Validator
	Notifier notify.Sender
	Limiter  limiters.Limiter
	Metrics  *metrics.Recorder
	Logger   logging.Logger
	Clock    func() time.Time
}

type AuthService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	hasher       PasswordHasher
	lockout      lockout.Policy
	tokens       *TokenIssuer
	verification *VerificationFlow
	federation   *IdentityFederation
	identity     identity.Validator
	notifier     notify.Sender
	limiter      limiters.Limiter
	metrics      *metrics.Recorder
	log          logging.Logger
	validate     *requestValidator
	appURL       string
	now          func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, deps Dependencies) *AuthService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = logging.Nop()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = limiters.Noop{}
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NewRecorder()
	}

	return &AuthService{
		db:           db,
		repomanager:  m,
		hasher:       deps.Hasher,
		lockout:      lockout.NewPolicy(cfg.LockoutThreshold, cfg.LockoutDuration),
		tokens:       NewTokenIssuer(db, m, deps.Tokens, cfg.RefreshTokenValidityDuration, now),
		verification: NewVerificationFlow(m, cfg.VerificationCodeLength, cfg.VerificationTokenValidity, cfg.ResetTokenValidity, now),
		federation:   NewIdentityFederation(m, cfg.AllowedDomains, now),
		identity:     deps.Identity,
		notifier:     deps.Notifier,
		limiter:      limiter,
		metrics:      rec,
		log:          log.With("component", "auth"),
		validate:     newRequestValidator(),
		appURL:       cfg.AppURL,
		now:          now,
	}
}

// fail turns err into something safe to hand to a caller. Use-case failures
// and context cancellation pass through; everything else is logged and
// replaced with common.ErrorInternal.
func (s *AuthService) fail(ctx context.Context, op string, err error) error {
	switch {
	case common.IsDomainError(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		s.log.Error(ctx, "unexpected failure", "op", op, "error", err)
		return common.ErrorInternal
	}
}

func (s *AuthService) recoverPanic(ctx context.Context, op string, err *error) {
	if r := recover(); r != nil {
		s.log.Error(ctx, "panic in use case", "op", op, "panic", fmt.Sprint(r))
		*err = common.ErrorInternal
	}
}

// profileOf returns the account's profile, or nil when it has none.
func (s *AuthService) profileOf(ctx context.Context, accountID string) *models.Profile {
	p, err := s.repomanager.Profiles(s.db).FindByAccountID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "profile lookup failed", "account_id", accountID, "error", err)
		}
		return nil
	}
	return p
}

func displayName(a *models.Account, p *models.Profile) string {
	if p != nil {
		if n := p.FullName(); n != "" {
			return n
		}
	}
	return a.Email
}

// send dispatches a notification after the unit of work that produced it has
// committed. Delivery failures are logged and never fail the use case.
func (s *AuthService) send(ctx context.Context, kind notify.Kind, recipient string, payload notify.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, kind, recipient, payload); err != nil {
		s.metrics.Notification(string(kind), "failed")
		s.log.Warn(ctx, "notification not sent", "kind", kind, "error", err)
		return
	}
	s.metrics.Notification(string(kind), "sent")
}

func (s *AuthService) link(path, token string) string {
	return s.appURL + path + "?token=" + token
}

// mailTime formats t for notification bodies.
func mailTime(t time.Time) string {
	return t.UTC().Format(time.RFC1123)
}
