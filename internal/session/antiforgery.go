package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// AntiForgery hands out short-lived tokens that public form posts must
// echo back. Tokens live in the vault next to the session and rotate
// once the configured lifetime has elapsed.
type AntiForgery struct {
	vault    Vault
	lifetime time.Duration
	now      func() time.Time

	mu sync.Mutex
}

type antiForgeryRecord struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

func NewAntiForgery(vault Vault, lifetime time.Duration, opts ...AntiForgeryOption) *AntiForgery {
	a := &AntiForgery{
		vault:    vault,
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type AntiForgeryOption func(*AntiForgery)

func WithAntiForgeryClock(now func() time.Time) AntiForgeryOption {
	return func(a *AntiForgery) { a.now = now }
}

// Token returns the current token, minting a fresh one when none is
// stored or the stored one has outlived its lifetime.
func (a *AntiForgery) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec := a.load(ctx); rec != nil && a.now().Sub(rec.IssuedAt) < a.lifetime {
		return rec.Token, nil
	}
	return a.rotate(ctx)
}

// Validate reports whether the submitted token matches the stored one
// and is still inside its lifetime. The comparison is constant time.
func (a *AntiForgery) Validate(ctx context.Context, token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if token == "" {
		return false
	}
	rec := a.load(ctx)
	if rec == nil || a.now().Sub(rec.IssuedAt) >= a.lifetime {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) == 1
}

func (a *AntiForgery) load(ctx context.Context) *antiForgeryRecord {
	raw, err := a.vault.Get(ctx, KeyAntiForgery)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil
		}
		return nil
	}

	var rec antiForgeryRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Token == "" {
		return nil
	}
	return &rec
}

func (a *AntiForgery) rotate(ctx context.Context) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("generating anti-forgery token: %w", err)
	}

	raw, err := json.Marshal(antiForgeryRecord{Token: token, IssuedAt: a.now()})
	if err != nil {
		return "", fmt.Errorf("encoding anti-forgery token: %w", err)
	}
	if err := a.vault.Set(ctx, KeyAntiForgery, string(raw)); err != nil {
		return "", fmt.Errorf("persisting anti-forgery token: %w", err)
	}
	return token, nil
}
