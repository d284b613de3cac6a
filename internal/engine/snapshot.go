package engine

import (
	"github.com/roomsync/roomsync/internal/wire"
)

// snapshotCap bounds per-peer history; oldest entries are evicted first.
const snapshotCap = 10

// nudgeFraction is how far a one-sided interpolation query moves toward
// its only available snapshot per render tick.
const nudgeFraction = 0.3

// Snapshot is one timestamped copy of a peer's record, timestamp already
// translated to local time.
type Snapshot struct {
	At     int64
	Record wire.Record
}

// SnapshotBuffer keeps a bounded, per-peer, timestamp-ordered history of
// records for interpolation.
type SnapshotBuffer struct {
	byPeer map[string][]Snapshot
}

// NewSnapshotBuffer returns an empty buffer.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{byPeer: make(map[string][]Snapshot)}
}

// Push appends a snapshot for a peer. Timestamps are kept non-decreasing:
// an earlier-than-last timestamp is clamped to the last one, so reordered
// arrivals degrade to duplicates instead of breaking the ordering
// invariant. History beyond the cap evicts oldest first.
func (sb *SnapshotBuffer) Push(peerID string, at int64, rec wire.Record) {
	snaps := sb.byPeer[peerID]
	if n := len(snaps); n > 0 && at < snaps[n-1].At {
		at = snaps[n-1].At
	}
	snaps = append(snaps, Snapshot{At: at, Record: rec})
	if len(snaps) > snapshotCap {
		snaps = snaps[len(snaps)-snapshotCap:]
	}
	sb.byPeer[peerID] = snaps
}

// Len reports how many snapshots a peer currently has.
func (sb *SnapshotBuffer) Len(peerID string) int {
	return len(sb.byPeer[peerID])
}

// Drop discards a peer's history.
func (sb *SnapshotBuffer) Drop(peerID string) {
	delete(sb.byPeer, peerID)
}

// PeerIDs returns the peers with buffered history.
func (sb *SnapshotBuffer) PeerIDs() []string {
	ids := make([]string, 0, len(sb.byPeer))
	for id := range sb.byPeer {
		ids = append(ids, id)
	}
	return ids
}

// Sample computes the record to render for a peer at renderAt.
//
// With snapshots bracketing renderAt, numeric fields interpolate linearly
// by the elapsed fraction (clamped to [0,1]) and non-numeric fields snap
// to the later value once the fraction passes 0.5. A render time landing
// exactly on the newest snapshot returns that record as-is. When only
// one side exists otherwise, the result nudges a fixed fraction from
// live toward it: render time outran the data, or precedes all of it.
// Returns false when the peer has no history.
func (sb *SnapshotBuffer) Sample(peerID string, renderAt int64, live wire.Record) (wire.Record, bool) {
	snaps := sb.byPeer[peerID]
	if len(snaps) == 0 {
		return nil, false
	}

	var before, after *Snapshot
	for i := range snaps {
		if snaps[i].At <= renderAt {
			before = &snaps[i]
		} else {
			after = &snaps[i]
			break
		}
	}

	switch {
	case before != nil && after != nil:
		frac := 0.0
		if total := after.At - before.At; total > 0 {
			frac = float64(renderAt-before.At) / float64(total)
		}
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
		return interpolateRecords(before.Record, after.Record, frac), true
	case before != nil:
		if before.At == renderAt {
			return cloneRecord(before.Record), true
		}
		return nudgeToward(live, before.Record), true
	default:
		return nudgeToward(live, after.Record), true
	}
}

// interpolateRecords blends two records at the given fraction. Fields
// absent from either side take the other side's value.
func interpolateRecords(from, to wire.Record, frac float64) wire.Record {
	out := make(wire.Record, len(to))
	for name, toVal := range to {
		fromVal, ok := from[name]
		if !ok {
			out[name] = toVal
			continue
		}
		fn, fromNum := asNumber(fromVal)
		tn, toNum := asNumber(toVal)
		if fromNum && toNum {
			out[name] = fn + (tn-fn)*frac
			continue
		}
		if frac > 0.5 {
			out[name] = toVal
		} else {
			out[name] = fromVal
		}
	}
	for name, fromVal := range from {
		if _, ok := to[name]; !ok {
			out[name] = fromVal
		}
	}
	return out
}

// nudgeToward moves live a fixed fraction toward target on numeric
// fields and copies everything else through from target.
func nudgeToward(live, target wire.Record) wire.Record {
	if live == nil {
		return cloneRecord(target)
	}
	out := make(wire.Record, len(target))
	for name, tgtVal := range target {
		ln, liveNum := asNumber(live[name])
		tn, tgtNum := asNumber(tgtVal)
		if liveNum && tgtNum {
			out[name] = ln + (tn-ln)*nudgeFraction
			continue
		}
		out[name] = tgtVal
	}
	return out
}
