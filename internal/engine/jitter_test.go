package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomsync/roomsync/internal/wire"
)

func TestJitterQueueDisabledAtZeroDelay(t *testing.T) {
	q := NewJitterQueue(0)
	assert.False(t, q.Enabled())
}

func TestJitterQueueHoldsUntilDeliverTime(t *testing.T) {
	q := NewJitterQueue(100 * time.Millisecond)
	require.True(t, q.Enabled())

	q.Push("p1", 1000, 950, wire.Record{"x": 1.0})

	assert.Empty(t, q.Drain(1050), "not yet due")
	due := q.Drain(1100)
	require.Len(t, due, 1)
	assert.Equal(t, "p1", due[0].PeerID)
	assert.Equal(t, int64(950), due[0].At, "original timestamp survives the delay")
	assert.Zero(t, q.Len())
}

func TestJitterQueueDrainOrder(t *testing.T) {
	q := NewJitterQueue(50 * time.Millisecond)
	q.Push("p1", 1000, 1000, wire.Record{"seq": 1.0})
	q.Push("p1", 1010, 1010, wire.Record{"seq": 2.0})
	q.Push("p2", 1020, 1020, wire.Record{"seq": 3.0})

	due := q.Drain(2000)
	require.Len(t, due, 3)
	assert.Equal(t, 1.0, due[0].Record["seq"])
	assert.Equal(t, 2.0, due[1].Record["seq"])
	assert.Equal(t, 3.0, due[2].Record["seq"])
}

func TestJitterQueueDropPeer(t *testing.T) {
	q := NewJitterQueue(50 * time.Millisecond)
	q.Push("p1", 1000, 1000, wire.Record{})
	q.Push("p2", 1000, 1000, wire.Record{})

	q.Drop("p1")

	due := q.Drain(2000)
	require.Len(t, due, 1)
	assert.Equal(t, "p2", due[0].PeerID)
}
