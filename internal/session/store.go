package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/backend"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/ratelimit"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/sanitize"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("incorrect credentials")
	ErrInvalidInput       = errors.New("invalid login input")
)

// ErrRateLimited carries the time the caller must wait before the
// next login attempt can succeed.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

// State describes what Check concluded about the stored session.
type State int

const (
	StateLoggedOut State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "logged_out"
}

// Reporter receives security alerts raised during session handling.
// The monitor package provides the production implementation.
type Reporter interface {
	Report(ctx context.Context, alertType, severity, message string, details map[string]interface{})
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, string, string, string, map[string]interface{}) {}

// Store owns the admin session lifecycle. Session records are encoded
// through the Codec before they touch the Vault, every login attempt
// passes the rate limiter before credentials are inspected, and every
// transition is reported to the backend as a security event.
type Store struct {
	vault    Vault
	codec    *Codec
	backend  backend.Backend
	reporter Reporter
	limiter  ratelimit.Limiter
	ttl      time.Duration
	now      func() time.Time

	mu sync.Mutex
}

type StoreOption func(*Store)

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithReporter(r Reporter) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.reporter = r
		}
	}
}

func NewStore(vault Vault, codec *Codec, be backend.Backend, limiter ratelimit.Limiter, ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		vault:    vault,
		codec:    codec,
		backend:  be,
		reporter: nopReporter{},
		limiter:  limiter,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check classifies the stored session. A missing record means logged
// out. A record that fails to decode is treated as tampering: the
// vault entry is cleared and an alert is raised. An expired record is
// cleared without remote consultation. A live record is confirmed
// against the backend and downgraded if the backend no longer knows
// the token. When that confirmation cannot be obtained, the session
// is cleared rather than trusted.
func (s *Store) Check(ctx context.Context) (State, *models.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := s.vault.Get(ctx, KeySession)
	if errors.Is(err, ErrNotFound) {
		return StateLoggedOut, nil
	}
	if err != nil {
		util.Warn("Session vault read failed", zap.Error(err))
		return StateLoggedOut, nil
	}

	rec := s.codec.Decode(encoded)
	if rec == nil {
		s.clearLocked(ctx)
		s.recordEvent(ctx, "", models.EventSessionCorrupted, nil)
		s.reporter.Report(ctx, models.AlertSuspiciousActivity, models.SeverityHigh,
			"stored session failed integrity check", map[string]interface{}{
				"length": len(encoded),
			})
		return StateLoggedOut, nil
	}

	if rec.IsExpired(s.now()) {
		s.clearLocked(ctx)
		s.recordEvent(ctx, rec.AdminID, models.EventSessionExpired, nil)
		return StateLoggedOut, nil
	}

	valid, err := s.backend.ValidateSession(ctx, rec.Token)
	if err != nil {
		util.Warn("Remote session validation unavailable",
			zap.String("admin_id", rec.AdminID),
			zap.Error(err))
		s.clearLocked(ctx)
		s.recordEvent(ctx, rec.AdminID, models.EventRemoteInvalid, map[string]interface{}{
			"reason": "backend_unreachable",
		})
		return StateLoggedOut, nil
	}
	if !valid {
		s.clearLocked(ctx)
		s.recordEvent(ctx, rec.AdminID, models.EventRemoteInvalid, nil)
		return StateLoggedOut, nil
	}

	return StateActive, rec
}

// Login authenticates an admin and installs a fresh session. The rate
// limiter runs first so a denied attempt never reaches the credential
// check. Inputs are cleaned before validation; content that looks like
// an injection attempt is refused and reported without detail.
func (s *Store) Login(ctx context.Context, email, secret string) (*models.SessionRecord, error) {
	key := "login:" + sanitize.Clean(email)

	if !s.limiter.Allow(key) {
		wait := s.limiter.RemainingTime(key)
		s.reporter.Report(ctx, models.AlertRateLimitExceeded, models.SeverityMedium,
			"login attempt rate limit exceeded", map[string]interface{}{
				"retry_after_seconds": int(wait.Seconds()),
			})
		return nil, &ErrRateLimited{RetryAfter: wait}
	}

	if sanitize.LooksInjected(email) || sanitize.LooksInjected(secret) {
		s.reporter.Report(ctx, models.AlertInjectionAttempt, models.SeverityHigh,
			"injection pattern in login input", nil)
		return nil, ErrInvalidInput
	}

	email = sanitize.Clean(email)
	if !sanitize.ValidEmail(email) || secret == "" {
		return nil, ErrInvalidInput
	}

	identity, err := s.backend.VerifyCredentials(ctx, email, secret)
	if errors.Is(err, backend.ErrBadCredentials) {
		s.reporter.Report(ctx, models.AlertFailedLogin, models.SeverityMedium,
			"failed admin login", map[string]interface{}{
				"email": email,
			})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := s.now()
	rec := &models.SessionRecord{
		AdminID:     identity.AdminID,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		Token:       token,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	encoded, err := s.codec.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vault.Set(ctx, KeySession, encoded); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	if err := s.backend.IssueSession(ctx, token, identity.AdminID); err != nil {
		util.Warn("Remote session registration failed",
			zap.String("admin_id", identity.AdminID),
			zap.Error(err))
	}

	s.recordEvent(ctx, identity.AdminID, models.EventSessionCreated, map[string]interface{}{
		"expires_at": rec.ExpiresAt,
	})
	return rec, nil
}

// Renew pushes the expiry of an active session forward by the full
// TTL. Anything other than a confirmed remote extension leaves the
// stored session untouched and returns false.
func (s *Store) Renew(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := s.vault.Get(ctx, KeySession)
	if err != nil {
		return false, nil
	}

	rec := s.codec.Decode(encoded)
	if rec == nil || rec.IsExpired(s.now()) {
		return false, nil
	}

	extended, err := s.backend.ExtendSession(ctx, rec.Token)
	if err != nil {
		return false, fmt.Errorf("extending session: %w", err)
	}
	if !extended {
		return false, nil
	}

	rec.ExpiresAt = s.now().Add(s.ttl)
	fresh, err := s.codec.Encode(rec)
	if err != nil {
		return false, fmt.Errorf("re-encoding session: %w", err)
	}
	if err := s.vault.Set(ctx, KeySession, fresh); err != nil {
		return false, fmt.Errorf("persisting renewed session: %w", err)
	}

	s.recordEvent(ctx, rec.AdminID, models.EventSessionRenewed, map[string]interface{}{
		"expires_at": rec.ExpiresAt,
	})
	return true, nil
}

// Logout revokes the session remotely on a best-effort basis and then
// clears every vault entry under the auth namespace. Calling it with
// no active session is a no-op.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := s.vault.Get(ctx, KeySession)
	if err == nil {
		if rec := s.codec.Decode(encoded); rec != nil {
			if err := s.backend.RevokeSession(ctx, rec.Token); err != nil {
				util.Warn("Remote session revocation failed",
					zap.String("admin_id", rec.AdminID),
					zap.Error(err))
			}
			s.recordEvent(ctx, rec.AdminID, models.EventSessionRevoked, nil)
		}
	}

	s.clearLocked(ctx)
	s.codec.ClearCache()
}

// StartExpirySweep re-runs Check on an interval until the context is
// cancelled, so an expired session is cleared even when no request
// arrives to observe it.
func (s *Store) StartExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check(ctx)
			}
		}
	}()
}

func (s *Store) clearLocked(ctx context.Context) {
	removed, err := s.vault.DeleteByPrefix(ctx, Namespace)
	if err != nil {
		util.Warn("Session vault sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		util.Debug("Session vault swept", zap.Int("removed", removed))
	}
}

func (s *Store) recordEvent(ctx context.Context, adminID, eventType string, details map[string]interface{}) {
	event := &models.SecurityEvent{
		AdminID:   adminID,
		Type:      eventType,
		Timestamp: s.now(),
		Details:   details,
	}
	if err := s.backend.RecordSecurityEvent(ctx, event); err != nil {
		util.Warn("Security event not recorded",
			zap.String("type", eventType),
			zap.Error(err))
	}
}
