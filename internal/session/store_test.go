package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/backend"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/config"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/ratelimit"
)

type recordingReporter struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingReporter) Report(_ context.Context, alertType, _, _ string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, alertType)
}

func (r *recordingReporter) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type storeFixture struct {
	store    *Store
	vault    *MemoryVault
	backend  *backend.Fake
	reporter *recordingReporter
	now      *time.Time
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	codec, err := NewCodec(&config.Config{}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	fake := backend.NewFake()
	fake.AddAdmin("direction@school.test", "correct-horse-battery", backend.Identity{
		AdminID:     "adm-1001",
		DisplayName: "Direction",
		Email:       "direction@school.test",
	})

	vault := NewMemoryVault()
	reporter := &recordingReporter{}
	limiter := ratelimit.NewSlidingWindow(3, 15*time.Minute, ratelimit.WithClock(clock))

	store := NewStore(vault, codec, fake, limiter, 8*time.Hour,
		WithClock(clock),
		WithReporter(reporter),
	)

	return &storeFixture{store: store, vault: vault, backend: fake, reporter: reporter, now: &now}
}

func (f *storeFixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func TestStore_CheckWithoutSession(t *testing.T) {
	f := newStoreFixture(t)

	state, rec := f.store.Check(context.Background())
	assert.Equal(t, StateLoggedOut, state)
	assert.Nil(t, rec)
}

func TestStore_LoginThenCheck(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	rec, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "adm-1001", rec.AdminID)
	assert.Len(t, rec.Token, 64)
	assert.True(t, rec.ExpiresAt.Equal(f.now.Add(8*time.Hour)))

	state, got := f.store.Check(ctx)
	assert.Equal(t, StateActive, state)
	require.NotNil(t, got)
	assert.Equal(t, rec.Token, got.Token)

	assert.Contains(t, f.backend.EventTypes(), models.EventSessionCreated)
}

func TestStore_LoginWrongSecret(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.store.Login(context.Background(), "direction@school.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, []string{models.AlertFailedLogin}, f.reporter.Types())
}

func TestStore_LoginRateLimited(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.store.Login(ctx, "direction@school.test", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	var limited *ErrRateLimited
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, 15*time.Minute, limited.RetryAfter)

	types := f.reporter.Types()
	require.Len(t, types, 4)
	assert.Equal(t, models.AlertRateLimitExceeded, types[3])

	// The window eventually reopens and the same credentials succeed.
	f.advance(16 * time.Minute)
	_, err = f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	assert.NoError(t, err)
}

func TestStore_LoginInjectionRefused(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.store.Login(context.Background(), "<script>alert(1)</script>@x.test", "secret")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, []string{models.AlertInjectionAttempt}, f.reporter.Types())
}

func TestStore_LoginInvalidEmail(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.store.Login(context.Background(), "not-an-email", "some-secret")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStore_ExpiredSessionCleared(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)

	f.advance(8*time.Hour + time.Second)

	state, _ := f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)

	_, err = f.vault.Get(ctx, KeySession)
	assert.ErrorIs(t, err, ErrNotFound, "expired session must be removed from the vault")
	assert.Contains(t, f.backend.EventTypes(), models.EventSessionExpired)
}

func TestStore_ExpiredEvenWhenRemoteAgrees(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	rec, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)

	// Remote still knows the token, expiry wins regardless.
	_, ok := f.backend.Tokens[rec.Token]
	require.True(t, ok)
	f.advance(9 * time.Hour)

	state, _ := f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)
}

func TestStore_RemoteInvalidation(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	rec, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)

	delete(f.backend.Tokens, rec.Token)

	state, _ := f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)
	assert.Contains(t, f.backend.EventTypes(), models.EventRemoteInvalid)
}

func TestStore_RemoteOutageClearsSession(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)

	f.backend.FailRemote = true

	state, rec := f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)
	assert.Nil(t, rec)
	assert.Contains(t, f.backend.EventTypes(), models.EventRemoteInvalid)

	// The session stays gone once the backend recovers.
	f.backend.FailRemote = false
	state, _ = f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)

	_, err = f.vault.Get(ctx, KeySession)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CorruptedSessionCleared(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	require.NoError(t, f.vault.Set(ctx, KeySession, "tampered garbage"))

	state, _ := f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)
	assert.Contains(t, f.backend.EventTypes(), models.EventSessionCorrupted)
	assert.Equal(t, []string{models.AlertSuspiciousActivity}, f.reporter.Types())

	_, err := f.vault.Get(ctx, KeySession)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Renew(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)

	f.advance(4 * time.Hour)

	renewed, err := f.store.Renew(ctx)
	require.NoError(t, err)
	assert.True(t, renewed)

	state, rec := f.store.Check(ctx)
	require.Equal(t, StateActive, state)
	assert.True(t, rec.ExpiresAt.Equal(f.now.Add(8*time.Hour)), "renewal restarts the full lifetime")
	assert.Contains(t, f.backend.EventTypes(), models.EventSessionRenewed)
}

func TestStore_RenewWithoutSession(t *testing.T) {
	f := newStoreFixture(t)

	renewed, err := f.store.Renew(context.Background())
	assert.NoError(t, err)
	assert.False(t, renewed)
}

func TestStore_RenewExpiredSession(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)

	f.advance(9 * time.Hour)

	renewed, err := f.store.Renew(ctx)
	assert.NoError(t, err)
	assert.False(t, renewed, "an expired session cannot be renewed")
}

func TestStore_RenewRejectedRemotely(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	rec, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)
	delete(f.backend.Tokens, rec.Token)

	renewed, err := f.store.Renew(ctx)
	assert.NoError(t, err)
	assert.False(t, renewed)
}

func TestStore_Logout(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	rec, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)

	f.store.Logout(ctx)

	state, _ := f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)
	_, ok := f.backend.Tokens[rec.Token]
	assert.False(t, ok, "logout revokes the remote token")
	assert.Contains(t, f.backend.EventTypes(), models.EventSessionRevoked)
}

func TestStore_LogoutIdempotent(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	f.store.Logout(ctx)
	f.store.Logout(ctx)

	state, _ := f.store.Check(ctx)
	assert.Equal(t, StateLoggedOut, state)
}

func TestStore_LogoutSweepsNamespace(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Login(ctx, "direction@school.test", "correct-horse-battery")
	require.NoError(t, err)
	require.NoError(t, f.vault.Set(ctx, KeyAntiForgery, "stale token"))
	require.NoError(t, f.vault.Set(ctx, "unrelated:key", "survives"))

	f.store.Logout(ctx)

	_, err = f.vault.Get(ctx, KeySession)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.vault.Get(ctx, KeyAntiForgery)
	assert.ErrorIs(t, err, ErrNotFound)

	survivor, err := f.vault.Get(ctx, "unrelated:key")
	assert.NoError(t, err)
	assert.Equal(t, "survives", survivor)
}

func TestStore_RemoteOutageDuringLogin(t *testing.T) {
	f := newStoreFixture(t)
	f.backend.FailRemote = true

	_, err := f.store.Login(context.Background(), "direction@school.test", "correct-horse-battery")
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrUnavailable))
}
