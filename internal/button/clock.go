package button

import "time"

// Clock supplies the timestamp for a poll.
type Clock interface {
	Now() Timestamp
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() Timestamp

// Now calls f.
func (f ClockFunc) Now() Timestamp {
	return f()
}

// MonotonicClock derives Timestamps from Go's monotonic clock, counting
// milliseconds since origin and wrapping at 2^32.
type MonotonicClock struct {
	origin time.Time
	offset Timestamp
	since  func(time.Time) time.Duration
}

// NewMonotonicClock returns a clock that reads 0 at origin.
func NewMonotonicClock(origin time.Time) *MonotonicClock {
	return &MonotonicClock{origin: origin, since: time.Since}
}

// Now returns milliseconds elapsed since origin, truncated to 32 bits.
func (m *MonotonicClock) Now() Timestamp {
	return m.offset + Timestamp(uint64(m.since(m.origin).Milliseconds()))
}
