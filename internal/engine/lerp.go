package engine

import (
	"github.com/roomsync/roomsync/internal/wire"
)

// LerpSmoother converges live remote records toward their latest received
// target a fixed fraction per render tick. Exponential convergence, zero
// added latency; catch-up lag is proportional to 1/factor ticks.
type LerpSmoother struct {
	factor  float64
	targets map[string]wire.Record
}

// NewLerpSmoother returns a smoother with the given per-tick fraction.
func NewLerpSmoother(factor float64) *LerpSmoother {
	return &LerpSmoother{
		factor:  factor,
		targets: make(map[string]wire.Record),
	}
}

// SetTarget replaces a peer's target record. The live record is never
// written here; it advances on the render tick.
func (s *LerpSmoother) SetTarget(peerID string, rec wire.Record) {
	s.targets[peerID] = rec
}

// Target returns the pending target for a peer, or nil.
func (s *LerpSmoother) Target(peerID string) wire.Record {
	return s.targets[peerID]
}

// Drop discards a departed peer's target.
func (s *LerpSmoother) Drop(peerID string) {
	delete(s.targets, peerID)
}

// Advance runs one render tick: every peer with a pending target has its
// live record moved factor of the remaining distance on numeric fields;
// non-numeric fields copy through immediately.
func (s *LerpSmoother) Advance(binding *StateBinding) {
	for peerID, target := range s.targets {
		s.advancePeer(binding, peerID, target)
	}
}

func (s *LerpSmoother) advancePeer(binding *StateBinding, peerID string, target wire.Record) {
	binding.MutatePeer(peerID, func(live wire.Record) {
		for name, tgtVal := range target {
			ln, liveNum := asNumber(live[name])
			tn, tgtNum := asNumber(tgtVal)
			if liveNum && tgtNum {
				live[name] = ln + (tn-ln)*s.factor
				continue
			}
			live[name] = tgtVal
		}
	})
}
