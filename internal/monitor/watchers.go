package monitor

import (
	"context"
	"regexp"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

var activeContentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<\s*iframe`),
}

// ContentGuard inspects submitted content for active markup that has
// no business in form input. Matches raise a high severity injection
// alert; the submitted content itself is never attached to the alert.
type ContentGuard struct {
	monitor *Monitor
}

func NewContentGuard(m *Monitor) *ContentGuard {
	return &ContentGuard{monitor: m}
}

// ScanContent reports whether the content is clean.
func (g *ContentGuard) ScanContent(ctx context.Context, source, content string) bool {
	for _, pattern := range activeContentPatterns {
		if pattern.MatchString(content) {
			g.monitor.Report(ctx, models.AlertInjectionAttempt, models.SeverityHigh,
				"active markup in submitted content", map[string]interface{}{
					"source": source,
				})
			return false
		}
	}
	return true
}

// ReportPanic turns a recovered panic into a suspicious activity
// alert. Wired into the HTTP recovery middleware.
func (m *Monitor) ReportPanic(ctx context.Context, recovered interface{}) {
	m.Report(ctx, models.AlertSuspiciousActivity, models.SeverityLow,
		"request handler panicked", map[string]interface{}{
			"panic": recovered,
		})
}

// StartMemoryWatch samples heap usage on an interval and raises a
// medium alert when the allocated heap crosses the limit. Disabled
// when interval or limit is zero.
func (m *Monitor) StartMemoryWatch(ctx context.Context, interval time.Duration, limitBytes uint64) {
	if interval <= 0 || limitBytes == 0 {
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
				var stats runtime.MemStats
				runtime.ReadMemStats(&stats)
				if stats.HeapAlloc > limitBytes {
					util.Warn("Heap usage over limit",
						zap.Uint64("heap_alloc", stats.HeapAlloc),
						zap.Uint64("limit", limitBytes))
					m.Report(ctx, models.AlertSuspiciousActivity, models.SeverityMedium,
						"heap usage over configured limit", map[string]interface{}{
							"heap_alloc_bytes": stats.HeapAlloc,
							"limit_bytes":      limitBytes,
						})
				}
			}
		}
	}()
}
