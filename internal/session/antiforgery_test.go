package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAntiForgery_TokenStableWithinLifetime(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	af := NewAntiForgery(NewMemoryVault(), 30*time.Minute,
		WithAntiForgeryClock(func() time.Time { return now }))
	ctx := context.Background()

	first, err := af.Token(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	now = now.Add(29 * time.Minute)
	second, err := af.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAntiForgery_TokenRotatesAfterLifetime(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	af := NewAntiForgery(NewMemoryVault(), 30*time.Minute,
		WithAntiForgeryClock(func() time.Time { return now }))
	ctx := context.Background()

	first, err := af.Token(ctx)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	second, err := af.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestAntiForgery_Validate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	af := NewAntiForgery(NewMemoryVault(), 30*time.Minute,
		WithAntiForgeryClock(func() time.Time { return now }))
	ctx := context.Background()

	token, err := af.Token(ctx)
	require.NoError(t, err)

	assert.True(t, af.Validate(ctx, token))
	assert.False(t, af.Validate(ctx, "wrong-token"))
	assert.False(t, af.Validate(ctx, ""))

	// Stale tokens stop validating once the lifetime elapses.
	now = now.Add(31 * time.Minute)
	assert.False(t, af.Validate(ctx, token))
}

func TestAntiForgery_ValidateWithoutToken(t *testing.T) {
	af := NewAntiForgery(NewMemoryVault(), 30*time.Minute)
	assert.False(t, af.Validate(context.Background(), "anything"))
}
