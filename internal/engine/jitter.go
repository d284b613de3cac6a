package engine

import (
	"time"

	"github.com/roomsync/roomsync/internal/wire"
)

// JitterItem is an inbound update held back until its deliver time
// passes. At keeps the original server-adjusted timestamp so the delay
// shifts delivery, not interpolation math.
type JitterItem struct {
	PeerID    string
	DeliverAt int64
	At        int64
	Record    wire.Record
}

// JitterQueue trades latency for smoothness: inbound updates wait a
// fixed delay before becoming eligible for snapshot insertion, absorbing
// delivery-timing variance from bursty arrival.
type JitterQueue struct {
	delay time.Duration
	items []JitterItem
}

// NewJitterQueue returns a queue with the given hold-back delay.
// A zero delay makes Enabled return false; callers bypass the queue.
func NewJitterQueue(delay time.Duration) *JitterQueue {
	return &JitterQueue{delay: delay}
}

// Enabled reports whether updates should pass through the queue at all.
func (q *JitterQueue) Enabled() bool {
	return q.delay > 0
}

// Push holds an update until now+delay.
func (q *JitterQueue) Push(peerID string, now, at int64, rec wire.Record) {
	q.items = append(q.items, JitterItem{
		PeerID:    peerID,
		DeliverAt: now + q.delay.Milliseconds(),
		At:        at,
		Record:    rec,
	})
}

// Drain removes and returns every item whose deliver time has passed,
// in arrival order.
func (q *JitterQueue) Drain(now int64) []JitterItem {
	var due []JitterItem
	kept := q.items[:0]
	for _, item := range q.items {
		if item.DeliverAt <= now {
			due = append(due, item)
		} else {
			kept = append(kept, item)
		}
	}
	q.items = kept
	return due
}

// Drop discards any queued items for a departed peer.
func (q *JitterQueue) Drop(peerID string) {
	kept := q.items[:0]
	for _, item := range q.items {
		if item.PeerID != peerID {
			kept = append(kept, item)
		}
	}
	q.items = kept
}

// Len reports how many items are queued.
func (q *JitterQueue) Len() int {
	return len(q.items)
}
