package chat

import (
	"sync/atomic"
	"time"
)

// Clock supplies the delays between run-status checks.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// SystemClock waits on the wall clock.
type SystemClock struct{}

// After implements Clock.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// InstantClock fires immediately and accounts for the time it was asked to wait.
// It lets a full poll budget run without sleeping.
type InstantClock struct {
	waits   atomic.Int64
	elapsed atomic.Int64
}

// After implements Clock.
func (c *InstantClock) After(d time.Duration) <-chan time.Time {
	c.waits.Add(1)
	total := c.elapsed.Add(int64(d))

	ch := make(chan time.Time, 1)
	ch <- time.Unix(0, total)
	return ch
}

// Waits returns the number of waits requested so far.
func (c *InstantClock) Waits() int {
	return int(c.waits.Load())
}

// Elapsed returns the sum of all requested waits.
func (c *InstantClock) Elapsed() time.Duration {
	return time.Duration(c.elapsed.Load())
}
