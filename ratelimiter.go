package notifier

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by an arbitrary string
// (user id for connection attempts, source label for publishes). Good
// enough for a single instance; a shared store would be needed for a
// fleet.
type RateLimiter struct {
	maxCalls    int
	window      time.Duration
	calls       map[string][]time.Time
	mutex       sync.Mutex
	nowFn       func() time.Time
	lastCleanup time.Time
}

func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		calls:    make(map[string][]time.Time),
		nowFn:    time.Now,
	}
}

// Allow records the call and reports whether it is within the limit.
func (l *RateLimiter) Allow(key string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.nowFn()
	if now.Sub(l.lastCleanup) > 10*l.window {
		l.cleanupLocked(now)
	}

	windowStart := now.Add(-l.window)
	recent := l.calls[key][:0]
	for _, at := range l.calls[key] {
		if at.After(windowStart) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= l.maxCalls {
		l.calls[key] = recent
		return false
	}

	l.calls[key] = append(recent, now)
	return true
}

func (l *RateLimiter) cleanupLocked(now time.Time) {
	windowStart := now.Add(-l.window)
	for key, timestamps := range l.calls {
		recent := timestamps[:0]
		for _, at := range timestamps {
			if at.After(windowStart) {
				recent = append(recent, at)
			}
		}
		if len(recent) == 0 {
			delete(l.calls, key)
			continue
		}
		l.calls[key] = recent
	}
	l.lastCleanup = now
}
