// Package timex centralises the small time helpers every tick-driven core
// component needs: a monotonic millisecond clock (spec.md's animation
// lifecycle is specified entirely in terms of a monotonic clock, §9 open
// question about preferring it over wall time for timing-sensitive tests).
package timex

import "time"

// Clock is a monotonic millisecond clock source, isolated from wall-clock
// adjustments (spec.md's animation tick()/set_absolute_start() are defined
// purely in terms of a monotonic "now_ms"). Construct it with NewClock:
// it then measures elapsed time from that call via time.Since, which
// uses Go's monotonic reading. A zero Clock has no such epoch.
type Clock struct {
	start time.Time
}

// NewClock returns a Clock whose epoch is the call instant.
func NewClock() *Clock { return &Clock{start: time.Now()} }

// NowMs returns milliseconds elapsed since the clock's epoch.
func (c *Clock) NowMs() int64 { return int64(time.Since(c.start) / time.Millisecond) }
