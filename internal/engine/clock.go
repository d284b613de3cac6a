package engine

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// ClockSync estimates the offset between the local clock and the relay's
// from timestamps embedded in inbound messages, and measures round-trip
// latency from ping/pong pairs.
type ClockSync struct {
	clock clockwork.Clock

	offsetMs   int64
	hasOffset  bool
	pingSentAt time.Time
	hasPing    bool
	rtt        time.Duration
}

// NewClockSync returns a sync using the given clock source.
func NewClockSync(clock clockwork.Clock) *ClockSync {
	return &ClockSync{clock: clock}
}

// LocalNow returns the local time in unix milliseconds.
func (c *ClockSync) LocalNow() int64 {
	return c.clock.Now().UnixMilli()
}

// Observe updates the running offset estimate from a server timestamp
// carried on an inbound message. Zero timestamps are ignored.
func (c *ClockSync) Observe(serverTimeMs int64) {
	if serverTimeMs == 0 {
		return
	}
	c.offsetMs = c.LocalNow() - serverTimeMs
	c.hasOffset = true
}

// OffsetMs returns the current offset estimate (local − server).
func (c *ClockSync) OffsetMs() int64 {
	return c.offsetMs
}

// ServerToLocal translates a server timestamp into local milliseconds
// using the current offset estimate. Before any estimate exists the
// timestamp passes through unchanged.
func (c *ClockSync) ServerToLocal(serverTimeMs int64) int64 {
	if !c.hasOffset {
		return serverTimeMs
	}
	return serverTimeMs + c.offsetMs
}

// MarkPing records that a latency probe was just sent.
func (c *ClockSync) MarkPing() {
	c.pingSentAt = c.clock.Now()
	c.hasPing = true
}

// ObservePong computes round-trip latency against the matching ping.
// A pong with no outstanding ping is ignored.
func (c *ClockSync) ObservePong() time.Duration {
	if !c.hasPing {
		return c.rtt
	}
	c.rtt = c.clock.Now().Sub(c.pingSentAt)
	c.hasPing = false
	return c.rtt
}

// RTT returns the latest measured round-trip latency.
func (c *ClockSync) RTT() time.Duration {
	return c.rtt
}
