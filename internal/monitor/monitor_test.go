package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/backend"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
)

func newTestMonitor(t *testing.T) (*Monitor, *backend.Fake, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fake := backend.NewFake()
	mon := NewMonitor(fake, time.Hour, WithClock(func() time.Time { return now }))
	return mon, fake, &now
}

func TestMonitor_AlertEnrichedAndRecorded(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)
	ctx := backend.WithClientAddress(context.Background(), "198.51.100.9")
	ctx = backend.WithClientSignature(ctx, "Mozilla/5.0")

	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)

	require.Len(t, fake.Alerts, 1)
	alert := fake.Alerts[0]
	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.Timestamp.IsZero())
	assert.Equal(t, "198.51.100.9", alert.ClientAddress)
	assert.Equal(t, "Mozilla/5.0", alert.ClientSignature)
}

func TestMonitor_UnknownClientAddress(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)
	fake.Address = ""

	mon.Report(context.Background(), models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)

	require.Len(t, fake.Alerts, 1)
	assert.Equal(t, "unknown", fake.Alerts[0].ClientAddress)
}

func TestMonitor_FailedLoginEscalatesAtThree(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)
	ctx := context.Background()

	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	require.Len(t, fake.Alerts, 2, "two failures stay below the threshold")

	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)

	require.Len(t, fake.Alerts, 4, "the third failure adds the escalation alert")
	escalated := fake.Alerts[3]
	assert.Equal(t, models.AlertFailedLogin, escalated.Type)
	assert.Equal(t, models.SeverityCritical, escalated.Severity)
	assert.Equal(t, 3, escalated.Details["occurrences"])
}

func TestMonitor_EscalationFiresOnce(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	}

	critical := 0
	for _, alert := range fake.Alerts {
		if alert.Severity == models.SeverityCritical {
			critical++
		}
	}
	assert.Equal(t, 1, critical, "threshold crossing escalates exactly once per window")
}

func TestMonitor_InjectionEscalatesImmediately(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)

	mon.Report(context.Background(), models.AlertInjectionAttempt, models.SeverityHigh, "injection pattern in form submission", nil)

	require.Len(t, fake.Alerts, 2)
	assert.Equal(t, models.SeverityCritical, fake.Alerts[1].Severity)
}

func TestMonitor_RateLimitEscalatesAtFive(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mon.Report(ctx, models.AlertRateLimitExceeded, models.SeverityMedium, "rate limit exceeded", nil)
	}
	require.Len(t, fake.Alerts, 4)

	mon.Report(ctx, models.AlertRateLimitExceeded, models.SeverityMedium, "rate limit exceeded", nil)
	require.Len(t, fake.Alerts, 6)
	assert.Equal(t, models.SeverityCritical, fake.Alerts[5].Severity)
}

func TestMonitor_CounterResetsAfterWindow(t *testing.T) {
	mon, fake, now := newTestMonitor(t)
	ctx := context.Background()

	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)

	*now = now.Add(61 * time.Minute)

	// The window has elapsed, so this failure starts a fresh count
	// and must not escalate.
	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	require.Len(t, fake.Alerts, 3)

	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	require.Len(t, fake.Alerts, 6, "three in the new window escalate again")
	assert.Equal(t, models.SeverityCritical, fake.Alerts[5].Severity)
}

func TestMonitor_TypesCountedIndependently(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)
	ctx := context.Background()

	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "failed admin login", nil)
	mon.Report(ctx, models.AlertRateLimitExceeded, models.SeverityMedium, "rate limit exceeded", nil)

	for _, alert := range fake.Alerts {
		assert.NotEqual(t, models.SeverityCritical, alert.Severity)
	}
}

func TestMonitor_RecentAlerts(t *testing.T) {
	mon, _, _ := newTestMonitor(t)
	ctx := context.Background()

	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "first", nil)
	mon.Report(ctx, models.AlertFailedLogin, models.SeverityMedium, "second", nil)

	recent := mon.RecentAlerts(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "second", recent[0].Message)

	all := mon.RecentAlerts(0)
	assert.Len(t, all, 2)
}

func TestContentGuard(t *testing.T) {
	mon, fake, _ := newTestMonitor(t)
	guard := NewContentGuard(mon)
	ctx := context.Background()

	assert.True(t, guard.ScanContent(ctx, "lead_form.message", "We would like a tour in September."))
	assert.Empty(t, fake.Alerts)

	assert.False(t, guard.ScanContent(ctx, "lead_form.message", "<script>steal()</script>"))
	require.NotEmpty(t, fake.Alerts)
	assert.Equal(t, models.AlertInjectionAttempt, fake.Alerts[0].Type)
	assert.Equal(t, "lead_form.message", fake.Alerts[0].Details["source"])
	assert.NotContains(t, fake.Alerts[0].Message, "steal", "submitted content never appears in the alert")
}
