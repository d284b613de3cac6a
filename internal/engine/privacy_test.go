package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomsync/roomsync/internal/wire"
)

func TestStripPrivate(t *testing.T) {
	rec := wire.Record{"x": 1.0, "_secret": 2.0, "name": "a", "_token": "t"}

	public := stripPrivate(rec)

	assert.Equal(t, wire.Record{"x": 1.0, "name": "a"}, public)
	assert.Contains(t, rec, "_secret", "source record is untouched")
}

// Round trip through broadcaster and receiver: a private field never
// reaches another peer's view.
func TestPrivateFieldRoundTrip(t *testing.T) {
	sender := BindCollection(map[string]any{
		"p1": map[string]any{"x": 1.0, "_secret": 2.0},
	})
	b := NewBroadcaster(sender, "p1")

	var frames [][]byte
	require.NoError(t, b.Flush(collectFrames(&frames)))
	require.Len(t, frames, 1)

	// Outbound state frames carry no playerId until the relay stamps one.
	var msg wire.Message
	require.NoError(t, json.Unmarshal(frames[0], &msg))
	rec, err := msg.StateRecord()
	require.NoError(t, err)

	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingNone})
	recv.ApplyState("p1", rec, 0)

	got := binding.Peer("p1")
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got["x"])
	assert.NotContains(t, got, "_secret")
}

func TestAsNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.5), 1.5, true},
		{int(3), 3, true},
		{int64(4), 4, true},
		{"5", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := asNumber(tt.in)
		assert.Equal(t, tt.ok, ok)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
