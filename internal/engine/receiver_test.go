package engine

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomsync/roomsync/internal/wire"
)

func newTestReceiver(t *testing.T, cfg Config) (*RemoteStateReceiver, *StateBinding, *clockwork.FakeClock) {
	t.Helper()
	fake := clockwork.NewFakeClock()
	binding := BindCollection(map[string]any{})
	recv := NewRemoteStateReceiver(cfg.withDefaults(), "me", binding, NewClockSync(fake))
	return recv, binding, fake
}

func TestReceiverModeNoneAppliesImmediately(t *testing.T) {
	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingNone})

	recv.ApplyState("p2", wire.Record{"x": 10.0, "y": 20.0}, 0)

	assert.Equal(t, wire.Record{"x": 10.0, "y": 20.0}, binding.Peer("p2"))
}

func TestReceiverSkipsLocalPeer(t *testing.T) {
	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingNone})

	recv.ApplyState("me", wire.Record{"x": 99.0}, 0)

	assert.Nil(t, binding.Peer("me"), "the receiver never writes the local entry")
}

func TestReceiverStripsInboundPrivateFields(t *testing.T) {
	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingNone})

	recv.ApplyState("p2", wire.Record{"x": 1.0, "_secret": 2.0}, 0)

	rec := binding.Peer("p2")
	require.NotNil(t, rec)
	assert.NotContains(t, rec, "_secret")
}

func TestReceiverLerpFirstObservationImmediate(t *testing.T) {
	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingLerp})

	recv.ApplyState("p2", wire.Record{"x": 10.0}, 0)

	assert.Equal(t, 10.0, binding.Peer("p2")["x"],
		"nothing exists to smooth from, apply directly")
}

func TestReceiverLerpNeverWritesLiveDirectly(t *testing.T) {
	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingLerp, LerpFactor: 0.5})
	recv.ApplyState("p2", wire.Record{"x": 0.0}, 0)

	recv.ApplyState("p2", wire.Record{"x": 100.0}, 0)
	assert.Equal(t, 0.0, binding.Peer("p2")["x"], "update only replaces the target")

	recv.RenderTick()
	assert.InDelta(t, 50.0, binding.Peer("p2")["x"], 1e-9)
	recv.RenderTick()
	assert.InDelta(t, 75.0, binding.Peer("p2")["x"], 1e-9)
}

func TestReceiverInterpolateRendersBehindNow(t *testing.T) {
	cfg := Config{Smoothing: SmoothingInterpolate, InterpolationDelay: 100 * time.Millisecond}
	recv, binding, fake := newTestReceiver(t, cfg)

	base := fake.Now().UnixMilli()
	recv.ApplyState("p2", wire.Record{"x": 0.0}, base)
	recv.ApplyState("p2", wire.Record{"x": 100.0}, base+100)

	// Render time = now − delay lands halfway between the snapshots.
	fake.Advance(150 * time.Millisecond)
	recv.RenderTick()

	assert.InDelta(t, 50.0, binding.Peer("p2")["x"], 1e-9)
}

func TestReceiverJitterDefersSnapshotInsertion(t *testing.T) {
	cfg := Config{
		Smoothing:          SmoothingInterpolate,
		InterpolationDelay: time.Millisecond,
		JitterBuffer:       100 * time.Millisecond,
	}
	recv, _, fake := newTestReceiver(t, cfg)

	base := fake.Now().UnixMilli()
	recv.ApplyState("p2", wire.Record{"x": 0.0}, base) // first observation, direct
	recv.ApplyState("p2", wire.Record{"x": 50.0}, base+10)

	recv.RenderTick()
	assert.Equal(t, 1, recv.snaps.Len("p2"), "held in the jitter queue")

	fake.Advance(120 * time.Millisecond)
	recv.RenderTick()
	assert.Equal(t, 2, recv.snaps.Len("p2"), "promoted after the delay")
}

func TestReceiverFullStateSkipsLocal(t *testing.T) {
	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingNone})

	recv.ApplyFullState(map[string]wire.Record{
		"me": {"x": 1.0},
		"p2": {"x": 2.0},
		"p3": {"x": 3.0, "_hidden": 4.0},
	})

	assert.Nil(t, binding.Peer("me"))
	assert.Equal(t, 2.0, binding.Peer("p2")["x"])
	assert.Equal(t, 3.0, binding.Peer("p3")["x"])
	assert.NotContains(t, binding.Peer("p3"), "_hidden")
}

func TestReceiverFullStatePrunesDepartedPeers(t *testing.T) {
	recv, binding, _ := newTestReceiver(t, Config{Smoothing: SmoothingNone})
	recv.ApplyState("p2", wire.Record{"x": 1.0}, 0)
	recv.ApplyState("p3", wire.Record{"x": 2.0}, 0)

	// p2 left during an outage; the recovery payload no longer lists it.
	recv.ApplyFullState(map[string]wire.Record{"p3": {"x": 5.0}})

	assert.Nil(t, binding.Peer("p2"))
	assert.Equal(t, 5.0, binding.Peer("p3")["x"])
}

func TestReceiverRemovePeerDiscardsEverything(t *testing.T) {
	cfg := Config{Smoothing: SmoothingInterpolate, JitterBuffer: 50 * time.Millisecond}
	recv, binding, fake := newTestReceiver(t, cfg)

	base := fake.Now().UnixMilli()
	recv.ApplyState("p2", wire.Record{"x": 1.0}, base)
	recv.ApplyState("p2", wire.Record{"x": 2.0}, base+10)

	recv.RemovePeer("p2")

	assert.Nil(t, binding.Peer("p2"))
	assert.Zero(t, recv.snaps.Len("p2"))
	assert.Zero(t, recv.jitter.Len())
}
