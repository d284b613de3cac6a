package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/roomsync/roomsync/internal/wire"
)

// RemoteStateReceiver dispatches inbound peer updates to the smoothing
// policy fixed at join time and maintains every remote entry of the
// shared peer collection. The local peer's entry is never written here.
type RemoteStateReceiver struct {
	mode    Smoothing
	localID string
	binding *StateBinding
	clock   *ClockSync

	snaps  *SnapshotBuffer
	jitter *JitterQueue
	lerp   *LerpSmoother

	interpolationDelayMs int64
}

// NewRemoteStateReceiver wires a receiver for one session.
func NewRemoteStateReceiver(cfg Config, localID string, binding *StateBinding, clock *ClockSync) *RemoteStateReceiver {
	return &RemoteStateReceiver{
		mode:                 cfg.Smoothing,
		localID:              localID,
		binding:              binding,
		clock:                clock,
		snaps:                NewSnapshotBuffer(),
		jitter:               NewJitterQueue(cfg.JitterBuffer),
		lerp:                 NewLerpSmoother(cfg.LerpFactor),
		interpolationDelayMs: cfg.InterpolationDelay.Milliseconds(),
	}
}

// ApplyState handles one inbound state update for a peer. Updates for
// the local peer are ignored; inbound private fields are stripped before
// anything is stored. The first-ever observation of a peer applies
// immediately regardless of mode, since nothing exists to smooth from.
func (r *RemoteStateReceiver) ApplyState(peerID string, rec wire.Record, serverTimeMs int64) {
	if peerID == r.localID {
		return
	}
	rec = stripPrivate(rec)

	if r.firstObservation(peerID) {
		r.binding.SetPeer(peerID, cloneRecord(rec))
		if r.mode == SmoothingInterpolate {
			r.snaps.Push(peerID, r.clock.ServerToLocal(serverTimeMs), rec)
		}
		return
	}

	switch r.mode {
	case SmoothingNone:
		r.binding.SetPeer(peerID, cloneRecord(rec))
	case SmoothingLerp:
		r.lerp.SetTarget(peerID, rec)
	case SmoothingInterpolate:
		at := r.clock.ServerToLocal(serverTimeMs)
		if r.jitter.Enabled() {
			r.jitter.Push(peerID, r.clock.LocalNow(), at, rec)
		} else {
			r.snaps.Push(peerID, at, rec)
		}
	}
}

// firstObservation reports whether nothing is known about a peer yet:
// no collection entry, and for interpolate no snapshot history either.
func (r *RemoteStateReceiver) firstObservation(peerID string) bool {
	if r.binding.Peer(peerID) != nil {
		return false
	}
	if r.mode == SmoothingInterpolate && r.snaps.Len(peerID) > 0 {
		return false
	}
	return true
}

// ApplyFullState applies a welcome or full_state payload in one pass,
// skipping the local peer id. Used for late joiners and post-reconnect
// recovery; every contained record lands directly, bypassing smoothing.
// The payload is authoritative: remote peers absent from it left while
// no notice could arrive, so their entries are pruned.
func (r *RemoteStateReceiver) ApplyFullState(state map[string]wire.Record) {
	for _, peerID := range r.binding.PeerIDs() {
		if peerID == r.localID {
			continue
		}
		if _, ok := state[peerID]; !ok {
			r.RemovePeer(peerID)
		}
	}
	for peerID, rec := range state {
		if peerID == r.localID {
			continue
		}
		rec = stripPrivate(rec)
		r.binding.SetPeer(peerID, cloneRecord(rec))
		switch r.mode {
		case SmoothingLerp:
			r.lerp.SetTarget(peerID, rec)
		case SmoothingInterpolate:
			r.snaps.Drop(peerID)
			r.snaps.Push(peerID, r.clock.LocalNow(), rec)
		}
	}
	log.Debug().Int("peers", len(state)).Msg("applied full state")
}

// RemovePeer deletes a departed peer's entry and all smoothing state.
func (r *RemoteStateReceiver) RemovePeer(peerID string) {
	r.binding.RemovePeer(peerID)
	r.snaps.Drop(peerID)
	r.jitter.Drop(peerID)
	r.lerp.Drop(peerID)
}

// RenderTick advances smoothing on the render cadence: due jitter items
// promote into the snapshot buffer, then the live records update per the
// active mode.
func (r *RemoteStateReceiver) RenderTick() {
	now := r.clock.LocalNow()

	switch r.mode {
	case SmoothingLerp:
		r.lerp.Advance(r.binding)
	case SmoothingInterpolate:
		for _, item := range r.jitter.Drain(now) {
			r.snaps.Push(item.PeerID, item.At, item.Record)
		}
		renderAt := now - r.interpolationDelayMs
		for _, peerID := range r.snaps.PeerIDs() {
			live := r.binding.Peer(peerID)
			if rec, ok := r.snaps.Sample(peerID, renderAt, live); ok {
				r.binding.SetPeer(peerID, rec)
			}
		}
	}
}
