package backend

import (
	"context"
	"sync"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
)

// Fake is an in-memory Backend for tests. Credentials and tokens are
// plain maps, recorded events and alerts are kept for assertions, and
// FailRemote forces the unavailable path.
type Fake struct {
	mu sync.Mutex

	Credentials map[string]string
	Identities  map[string]Identity
	Tokens      map[string]string
	Events      []*models.SecurityEvent
	Alerts      []*models.SecurityAlert
	Address     string

	FailRemote bool
}

func NewFake() *Fake {
	return &Fake{
		Credentials: make(map[string]string),
		Identities:  make(map[string]Identity),
		Tokens:      make(map[string]string),
		Address:     "203.0.113.7",
	}
}

// AddAdmin registers a login the fake will accept.
func (f *Fake) AddAdmin(email, secret string, identity Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Credentials[email] = secret
	f.Identities[email] = identity
}

func (f *Fake) VerifyCredentials(_ context.Context, email, secret string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRemote {
		return nil, ErrUnavailable
	}

	want, ok := f.Credentials[email]
	if !ok || want != secret {
		return nil, ErrBadCredentials
	}

	identity := f.Identities[email]
	return &identity, nil
}

func (f *Fake) ValidateSession(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRemote {
		return false, ErrUnavailable
	}
	_, ok := f.Tokens[token]
	return ok, nil
}

func (f *Fake) IssueSession(_ context.Context, token, adminID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRemote {
		return ErrUnavailable
	}
	f.Tokens[token] = adminID
	return nil
}

func (f *Fake) ExtendSession(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRemote {
		return false, ErrUnavailable
	}
	_, ok := f.Tokens[token]
	return ok, nil
}

func (f *Fake) RevokeSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRemote {
		return ErrUnavailable
	}
	delete(f.Tokens, token)
	return nil
}

func (f *Fake) RecordSecurityEvent(_ context.Context, event *models.SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, event)
	return nil
}

func (f *Fake) RecordSecurityAlert(_ context.Context, alert *models.SecurityAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Alerts = append(f.Alerts, alert)
	return nil
}

func (f *Fake) LookupClientAddress(ctx context.Context) (string, error) {
	if addr := ClientAddressFrom(ctx); addr != "" {
		return addr, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Address, nil
}

// EventTypes returns the types of recorded events in order.
func (f *Fake) EventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	types := make([]string, 0, len(f.Events))
	for _, e := range f.Events {
		types = append(types, e.Type)
	}
	return types
}

// AlertTypes returns the types of recorded alerts in order.
func (f *Fake) AlertTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	types := make([]string, 0, len(f.Alerts))
	for _, a := range f.Alerts {
		types = append(types, a.Type)
	}
	return types
}
