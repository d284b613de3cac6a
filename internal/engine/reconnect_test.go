package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 8000 * time.Millisecond},
		{5, 16000 * time.Millisecond},
		{6, 30000 * time.Millisecond},
		{10, 30000 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BackoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestReconnectionManagerLifecycle(t *testing.T) {
	m := NewReconnectionManager(3)
	require.Equal(t, StateConnected, m.State())

	delay, ok := m.NextAttempt()
	require.True(t, ok)
	assert.Equal(t, time.Second, delay)
	assert.Equal(t, StateReconnecting, m.State())
	assert.Equal(t, 1, m.Attempt())

	m.Connected()
	assert.Equal(t, StateConnected, m.State())
	assert.Zero(t, m.Attempt(), "successful reconnection resets the counter")

	// Back-to-back failures restart the backoff from the beginning.
	delay, ok = m.NextAttempt()
	require.True(t, ok)
	assert.Equal(t, time.Second, delay)
}

func TestReconnectionManagerExhaustion(t *testing.T) {
	m := NewReconnectionManager(2)

	_, ok := m.NextAttempt()
	require.True(t, ok)
	_, ok = m.NextAttempt()
	require.True(t, ok)

	_, ok = m.NextAttempt()
	require.False(t, ok, "ceiling exceeded")
	assert.Equal(t, StateFailed, m.State())

	// Terminal: no further attempts regardless of calls.
	_, ok = m.NextAttempt()
	assert.False(t, ok)
	assert.Equal(t, StateFailed, m.State())
}

func TestReconnectionManagerDisconnectedIsTerminal(t *testing.T) {
	m := NewReconnectionManager(5)
	m.Disconnected()
	require.Equal(t, StateDisconnected, m.State())

	_, ok := m.NextAttempt()
	assert.False(t, ok, "explicit leave cancels reconnection")

	// Idempotent regardless of attempt count.
	m.Disconnected()
	assert.Equal(t, StateDisconnected, m.State())
}
