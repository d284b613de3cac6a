package engine

import (
	"time"
)

// ConnState is the session's connection lifecycle state.
type ConnState string

const (
	// StateConnected means a live transport is attached.
	StateConnected ConnState = "connected"
	// StateReconnecting means an unexpected closure occurred and a retry
	// is pending or in flight.
	StateReconnecting ConnState = "reconnecting"
	// StateFailed is terminal: the attempt ceiling was reached. Only a
	// fresh Join leaves it.
	StateFailed ConnState = "failed"
	// StateDisconnected is terminal on explicit leave.
	StateDisconnected ConnState = "disconnected"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// BackoffDelay returns the retry delay for a 1-based attempt number:
// min(1s·2^(attempt−1), 30s).
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := reconnectBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= reconnectMaxDelay {
			return reconnectMaxDelay
		}
	}
	if delay > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return delay
}

// ReconnectionManager tracks the reconnection state machine. Timer
// scheduling lives in the client run loop; this holds the counters and
// transitions so they stay testable in isolation.
type ReconnectionManager struct {
	maxAttempts int
	attempt     int
	state       ConnState
}

// NewReconnectionManager starts in the connected state with a fresh
// attempt counter.
func NewReconnectionManager(maxAttempts int) *ReconnectionManager {
	return &ReconnectionManager{
		maxAttempts: maxAttempts,
		state:       StateConnected,
	}
}

// State returns the current connection state.
func (m *ReconnectionManager) State() ConnState {
	return m.state
}

// Attempt returns the current 1-based attempt number, 0 when connected.
func (m *ReconnectionManager) Attempt() int {
	return m.attempt
}

// NextAttempt records an unexpected closure or failed retry and returns
// the delay before the next attempt. ok is false when the ceiling is
// exceeded, which moves the machine to terminal StateFailed.
func (m *ReconnectionManager) NextAttempt() (delay time.Duration, ok bool) {
	if m.state == StateDisconnected || m.state == StateFailed {
		return 0, false
	}
	m.attempt++
	if m.attempt > m.maxAttempts {
		m.state = StateFailed
		return 0, false
	}
	m.state = StateReconnecting
	return BackoffDelay(m.attempt), true
}

// Fail moves the machine to terminal StateFailed, used when reconnection
// is disabled and the transport dies.
func (m *ReconnectionManager) Fail() {
	if m.state != StateDisconnected {
		m.state = StateFailed
	}
}

// Connected records a successful (re)connection and resets the counter.
func (m *ReconnectionManager) Connected() {
	m.attempt = 0
	m.state = StateConnected
}

// Disconnected records an explicit leave. Idempotent regardless of
// attempt count.
func (m *ReconnectionManager) Disconnected() {
	m.state = StateDisconnected
}
