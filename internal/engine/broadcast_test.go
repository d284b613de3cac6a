package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomsync/roomsync/internal/wire"
)

func collectFrames(frames *[][]byte) func([]byte) error {
	return func(data []byte) error {
		*frames = append(*frames, data)
		return nil
	}
}

func TestBroadcasterCoalescesWrites(t *testing.T) {
	coll := map[string]any{"me": map[string]any{}}
	binding := BindCollection(coll)
	b := NewBroadcaster(binding, "me")

	// Many writes between two ticks; only the final merged record goes out.
	binding.MutatePeer("me", func(rec wire.Record) { rec["x"] = 1.0 })
	binding.MutatePeer("me", func(rec wire.Record) { rec["x"] = 2.0 })
	binding.MutatePeer("me", func(rec wire.Record) { rec["y"] = 3.0 })

	var frames [][]byte
	require.NoError(t, b.Flush(collectFrames(&frames)))
	require.Len(t, frames, 1)

	// Outbound state frames have no playerId until the relay stamps one.
	var msg wire.Message
	require.NoError(t, json.Unmarshal(frames[0], &msg))
	require.Equal(t, wire.TypeState, msg.Type)
	rec, err := msg.StateRecord()
	require.NoError(t, err)
	assert.Equal(t, wire.Record{"x": 2.0, "y": 3.0}, rec)
}

func TestBroadcasterIdempotent(t *testing.T) {
	coll := map[string]any{"me": map[string]any{"x": 1.0}}
	binding := BindCollection(coll)
	b := NewBroadcaster(binding, "me")

	var frames [][]byte
	send := collectFrames(&frames)
	require.NoError(t, b.Flush(send))
	require.NoError(t, b.Flush(send))

	assert.Len(t, frames, 1, "identical record twice produces exactly one message")
}

func TestBroadcasterNoLocalRecord(t *testing.T) {
	binding := BindCollection(map[string]any{})
	b := NewBroadcaster(binding, "me")

	var frames [][]byte
	require.NoError(t, b.Flush(collectFrames(&frames)))
	assert.Empty(t, frames)
}

func TestBroadcasterStripsPrivateFields(t *testing.T) {
	coll := map[string]any{"me": map[string]any{"x": 1.0, "_secret": 2.0}}
	binding := BindCollection(coll)
	b := NewBroadcaster(binding, "me")

	var frames [][]byte
	require.NoError(t, b.Flush(collectFrames(&frames)))
	require.Len(t, frames, 1)

	var msg wire.Message
	require.NoError(t, json.Unmarshal(frames[0], &msg))
	rec, err := msg.StateRecord()
	require.NoError(t, err)
	assert.Equal(t, wire.Record{"x": 1.0}, rec)
	assert.NotContains(t, rec, "_secret")
}

func TestBroadcasterPrivateOnlyChangeDoesNotSend(t *testing.T) {
	coll := map[string]any{"me": map[string]any{"x": 1.0, "_secret": 1.0}}
	binding := BindCollection(coll)
	b := NewBroadcaster(binding, "me")

	var frames [][]byte
	send := collectFrames(&frames)
	require.NoError(t, b.Flush(send))
	binding.MutatePeer("me", func(rec wire.Record) { rec["_secret"] = 99.0 })
	require.NoError(t, b.Flush(send))

	assert.Len(t, frames, 1, "changes to private fields are invisible on the wire")
}

func TestBroadcasterFailedSendStaysDirty(t *testing.T) {
	coll := map[string]any{"me": map[string]any{"x": 1.0}}
	binding := BindCollection(coll)
	b := NewBroadcaster(binding, "me")

	fail := func([]byte) error { return assert.AnError }
	require.Error(t, b.Flush(fail))

	// The dropped tick is superseded: the next successful one transmits.
	var frames [][]byte
	require.NoError(t, b.Flush(collectFrames(&frames)))
	assert.Len(t, frames, 1)
}

// The application writes its own record while the broadcast tick reads
// it; both sides must go through the binding lock.
func TestBroadcasterFlushDuringConcurrentWrites(t *testing.T) {
	binding := BindCollection(map[string]any{})
	b := NewBroadcaster(binding, "me")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			v := float64(i)
			binding.MutatePeer("me", func(rec wire.Record) {
				rec["x"] = v
				rec["_session"] = v
			})
		}
	}()

	discard := func([]byte) error { return nil }
	for flushing := true; flushing; {
		select {
		case <-done:
			flushing = false
		default:
		}
		require.NoError(t, b.Flush(discard))
		_ = binding.Peer("me")
	}
}

func TestBroadcasterResetForcesResend(t *testing.T) {
	coll := map[string]any{"me": map[string]any{"x": 1.0}}
	binding := BindCollection(coll)
	b := NewBroadcaster(binding, "me")

	var frames [][]byte
	send := collectFrames(&frames)
	require.NoError(t, b.Flush(send))
	b.Reset()
	require.NoError(t, b.Flush(send))

	assert.Len(t, frames, 2)
}
