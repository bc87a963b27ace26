// Package host implements the C1 host abstraction: a monotonic timestamp
// source and a one-shot timer, as described in spec §6.6. Every other core
// package depends on this one for timing instead of touching the wall
// clock directly, so that the whole core stays usable from a single
// cooperative event loop (see spec §5).
package host

import "time"

// Timestamp is an opaque monotonic instant. Only Now and DiffMsec may be
// used to produce or consume one; it is not meaningful to serialize or
// compare it across processes.
type Timestamp struct {
	t time.Time
}

// Now returns the current monotonic timestamp.
func Now() Timestamp {
	return Timestamp{t: time.Now()}
}

// DiffMsec returns a-b in milliseconds. Positive means a is after b.
func DiffMsec(a, b Timestamp) int32 {
	return int32(a.t.Sub(b.t) / time.Millisecond)
}

// Add returns ts advanced by msec milliseconds (msec may be negative).
func (ts Timestamp) Add(msec int32) Timestamp {
	return Timestamp{t: ts.t.Add(time.Duration(msec) * time.Millisecond)}
}

// IsZero reports whether ts is the zero Timestamp.
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}
