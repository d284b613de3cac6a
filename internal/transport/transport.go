// Package transport provides the duplex message channel the sync engine
// talks to a relay over. Implementations deliver whole frames; framing,
// reconnection and message semantics live above this layer.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send after the transport has been closed,
// locally or by the remote end.
var ErrClosed = errors.New("transport: closed")

// Transport is a duplex frame channel to a relay session.
//
// Messages delivers inbound frames until the transport closes. Closed
// fires exactly once when the channel dies unexpectedly; a local Close
// does not fire it. At most one live transport exists per session.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Messages() <-chan []byte
	Closed() <-chan error
	Close() error
}

// Dialer produces a fresh transport for a room. The engine re-invokes it
// with the same parameters when reconnecting.
type Dialer func(ctx context.Context, roomID, playerID string) (Transport, error)
