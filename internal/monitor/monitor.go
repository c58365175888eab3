package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/backend"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

const recentAlertLimit = 200

// escalation thresholds per alert type, within one counter window
var escalationThresholds = map[string]int{
	models.AlertFailedLogin:        3,
	models.AlertSuspiciousActivity: 1,
	models.AlertRateLimitExceeded:  5,
	models.AlertInjectionAttempt:   1,
}

type counter struct {
	count     int
	firstSeen time.Time
}

// Monitor collects security alerts, counts occurrences per type, and
// escalates to a critical alert once a type crosses its threshold.
// Per-type counters reset one window after their first occurrence.
// Escalation alerts themselves are never counted.
type Monitor struct {
	backend     backend.Backend
	resetWindow time.Duration
	now         func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
	recent   []*models.SecurityAlert
}

type Option func(*Monitor)

// WithClock overrides the time source, used by counter window tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(be backend.Backend, resetWindow time.Duration, opts ...Option) *Monitor {
	m := &Monitor{
		backend:     be,
		resetWindow: resetWindow,
		now:         time.Now,
		counters:    make(map[string]*counter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Report satisfies the session package's Reporter interface.
func (m *Monitor) Report(ctx context.Context, alertType, severity, message string, details map[string]interface{}) {
	m.LogAlert(ctx, &models.SecurityAlert{
		Type:     alertType,
		Severity: severity,
		Message:  message,
		Details:  details,
	})
}

// LogAlert enriches, records and counts one alert, escalating when
// the type's threshold is crossed.
func (m *Monitor) LogAlert(ctx context.Context, alert *models.SecurityAlert) {
	m.enrich(ctx, alert)
	m.record(ctx, alert)

	m.mu.Lock()
	m.remember(alert)
	escalate, count := m.bump(alert.Type)
	m.mu.Unlock()

	util.Warn("Security alert",
		zap.String("type", alert.Type),
		zap.String("severity", alert.Severity),
		zap.String("message", alert.Message),
		zap.String("client_address", alert.ClientAddress))

	if escalate {
		m.escalate(ctx, alert, count)
	}
}

// RecentAlerts returns the newest alerts first, capped at limit.
func (m *Monitor) RecentAlerts(limit int) []*models.SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}

	out := make([]*models.SecurityAlert, 0, limit)
	for i := len(m.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.recent[i])
	}
	return out
}

func (m *Monitor) enrich(ctx context.Context, alert *models.SecurityAlert) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = m.now()
	}
	if alert.ClientAddress == "" {
		addr, err := m.backend.LookupClientAddress(ctx)
		if err != nil || addr == "" {
			addr = "unknown"
		}
		alert.ClientAddress = addr
	}
	if alert.ClientSignature == "" {
		alert.ClientSignature = backend.ClientSignatureFrom(ctx)
	}
}

func (m *Monitor) record(ctx context.Context, alert *models.SecurityAlert) {
	if err := m.backend.RecordSecurityAlert(ctx, alert); err != nil {
		util.Warn("Security alert not recorded",
			zap.String("type", alert.Type),
			zap.Error(err))
	}
}

func (m *Monitor) remember(alert *models.SecurityAlert) {
	m.recent = append(m.recent, alert)
	if len(m.recent) > recentAlertLimit {
		m.recent = m.recent[len(m.recent)-recentAlertLimit:]
	}
}

// bump increments the type's counter and reports whether the count
// just reached the escalation threshold. Counters older than the
// reset window start over.
func (m *Monitor) bump(alertType string) (bool, int) {
	threshold, tracked := escalationThresholds[alertType]
	if !tracked {
		return false, 0
	}

	now := m.now()
	c, ok := m.counters[alertType]
	if !ok || now.Sub(c.firstSeen) >= m.resetWindow {
		c = &counter{firstSeen: now}
		m.counters[alertType] = c
	}
	c.count++

	return c.count == threshold, c.count
}

func (m *Monitor) escalate(ctx context.Context, trigger *models.SecurityAlert, count int) {
	alert := &models.SecurityAlert{
		ID:              uuid.New().String(),
		Type:            trigger.Type,
		Severity:        models.SeverityCritical,
		Message:         fmt.Sprintf("threshold reached for %s: %d occurrences", trigger.Type, count),
		Timestamp:       m.now(),
		ClientAddress:   trigger.ClientAddress,
		ClientSignature: trigger.ClientSignature,
		Details: map[string]interface{}{
			"occurrences":    count,
			"trigger_alert":  trigger.ID,
			"window_seconds": int(m.resetWindow.Seconds()),
		},
	}

	m.record(ctx, alert)

	m.mu.Lock()
	m.remember(alert)
	m.mu.Unlock()

	util.Error("Security alert escalated",
		zap.String("type", alert.Type),
		zap.Int("occurrences", count))
}
