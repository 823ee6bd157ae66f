// ABOUTME: Monotonic clock abstraction for playback scheduling
// ABOUTME: Allows a fake deterministic clock to drive tests
package timing

import (
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired.
	Stop() bool
}

// Clock is the engine's monotonic time source. Now returns seconds since an
// arbitrary origin and never goes backwards.
type Clock interface {
	Now() float64
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock implements Clock on the runtime's monotonic clock.
type SystemClock struct {
	mu    sync.Mutex
	start time.Time
}

// NewSystemClock creates a clock with its origin at the current instant.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start).Seconds()
}

func (c *SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return systemTimer{time.AfterFunc(d, f)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}

// Seconds converts a duration in seconds to time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
