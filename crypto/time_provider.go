package crypto

import (
	"sync"
	"time"
)

// TimeProvider abstracts the clock used for message dates, notification
// expiry and cache freshness. Implementations must be safe for concurrent use.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the system clock in UTC.
type DefaultTimeProvider struct{}

// Now returns the current UTC time.
func (DefaultTimeProvider) Now() time.Time { return time.Now().UTC() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// FixedTimeProvider returns a settable instant. It is used by tests that need
// deterministic dates.
type FixedTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedTimeProvider returns a provider frozen at now.
func NewFixedTimeProvider(now time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{now: now.UTC()}
}

// Now returns the frozen instant.
func (f *FixedTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Since measures from the frozen instant.
func (f *FixedTimeProvider) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

// Advance moves the frozen instant forward by d.
func (f *FixedTimeProvider) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// OrDefault returns tp, or DefaultTimeProvider when tp is nil.
func OrDefault(tp TimeProvider) TimeProvider {
	if tp == nil {
		return DefaultTimeProvider{}
	}
	return tp
}
