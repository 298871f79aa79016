package eventloop

import (
	"sync"
	"time"
)

// MockClock is a manually advanced Clock for tests.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*mockTimer
}

type mockTimer struct {
	clock *MockClock
	at    time.Time
	seq   int
	f     func()
}

// NewMockClock creates a MockClock starting at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the mock time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock is advanced past d.
func (c *MockClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &mockTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due callbacks in deadline
// order. Callbacks run synchronously on the caller's goroutine.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		c.removeLocked(next)
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of registered callbacks that have not fired.
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// nextDueLocked returns the earliest timer due at or before target.
// Must be called with lock held.
func (c *MockClock) nextDueLocked(target time.Time) *mockTimer {
	var next *mockTimer
	for _, t := range c.timers {
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

// removeLocked drops t from the pending list.
// Must be called with lock held.
func (c *MockClock) removeLocked(t *mockTimer) bool {
	for i, candidate := range c.timers {
		if candidate == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Stop cancels the callback.
func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeLocked(t)
}

// Ensure MockClock implements Clock
var _ Clock = (*MockClock)(nil)
