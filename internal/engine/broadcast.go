package engine

import (
	"bytes"
	"fmt"

	"github.com/roomsync/roomsync/internal/wire"
)

// Broadcaster publishes the local peer's record on the network tick,
// transmitting only when the stripped, serialized record changed since
// the last successful send. Writes between two ticks coalesce: only the
// final merged record ever hits the wire.
type Broadcaster struct {
	binding *StateBinding
	localID string

	lastSent []byte
}

// NewBroadcaster returns a broadcaster for the local peer's entry.
func NewBroadcaster(binding *StateBinding, localID string) *Broadcaster {
	return &Broadcaster{binding: binding, localID: localID}
}

// Flush runs one broadcast tick. The local record is read, private
// fields stripped, and the result serialized deterministically (JSON
// object keys sort) for comparison against the last transmission. An
// unchanged record is a no-op; a send failure leaves the dirty state in
// place so the next tick retries with whatever is current then.
func (b *Broadcaster) Flush(send func([]byte) error) error {
	rec := b.binding.Peer(b.localID)
	if rec == nil {
		return nil
	}

	msg, err := wire.NewState(stripPrivate(rec))
	if err != nil {
		return fmt.Errorf("serialize local record: %w", err)
	}
	if bytes.Equal(msg.Data, b.lastSent) {
		return nil
	}

	frame, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := send(frame); err != nil {
		return fmt.Errorf("broadcast state: %w", err)
	}
	b.lastSent = msg.Data
	return nil
}

// Reset clears the last-sent memory, forcing the next tick to transmit.
// Used after reconnection so the relay regains the local record.
func (b *Broadcaster) Reset() {
	b.lastSent = nil
}
