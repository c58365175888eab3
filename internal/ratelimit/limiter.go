package ratelimit

import (
	"sync"
	"time"
)

// Limiter gates repeated attempts against a sliding window.
type Limiter interface {
	// Allow records the attempt and returns true if identifier is still
	// under its limit. A denied attempt is not recorded.
	Allow(identifier string) bool
	// RemainingTime returns how long until the identifier is allowed
	// again, zero when it is under the limit.
	RemainingTime(identifier string) time.Duration
}

// SlidingWindow is a process-local limiter. Multi-replica deployments
// use the shared Redis limiter instead.
type SlidingWindow struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindow) { l.now = now }
}

func NewSlidingWindow(maxAttempts int, window time.Duration, opts ...Option) *SlidingWindow {
	l := &SlidingWindow{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		buckets:     make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *SlidingWindow) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(identifier, now)
	if len(recent) >= l.maxAttempts {
		l.buckets[identifier] = recent
		return false
	}

	l.buckets[identifier] = append(recent, now)
	return true
}

func (l *SlidingWindow) RemainingTime(identifier string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(identifier, now)
	l.buckets[identifier] = recent

	if len(recent) < l.maxAttempts {
		return 0
	}

	remaining := l.window - now.Sub(recent[0])
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune filters the bucket to attempts still inside the window. Expired
// entries are dropped lazily on each check, never by a background task.
func (l *SlidingWindow) prune(identifier string, now time.Time) []time.Time {
	attempts := l.buckets[identifier]
	recent := attempts[:0:0]
	for _, t := range attempts {
		if now.Sub(t) < l.window {
			recent = append(recent, t)
		}
	}
	return recent
}
