package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATS is a Transport that uses a pair of NATS subjects per room: clients
// publish upstream frames on "<subject>.up.<playerID>" and receive the
// relay's fan-out on "<subject>". The relay process on the other side
// owns membership and timestamps, exactly as over a websocket.
type NATS struct {
	url     string
	subject string
	upward  string

	conn     *nats.Conn
	sub      *nats.Subscription
	messages chan []byte
	closed   chan error
	done     chan struct{}

	closeOnce sync.Once
}

// NewNATS creates an unconnected NATS transport for one room subject.
func NewNATS(url, subject, playerID string) *NATS {
	return &NATS{
		url:      url,
		subject:  subject,
		upward:   fmt.Sprintf("%s.up.%s", subject, playerID),
		messages: make(chan []byte, 256),
		closed:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// NATSDialer returns a Dialer connecting rooms over subjects of the form
// "relay.room.<roomID>".
func NATSDialer(url string) Dialer {
	return func(ctx context.Context, roomID, playerID string) (Transport, error) {
		n := NewNATS(url, fmt.Sprintf("relay.room.%s", roomID), playerID)
		if err := n.Connect(ctx); err != nil {
			return nil, err
		}
		return n, nil
	}
}

// Connect establishes the NATS connection and room subscription.
func (n *NATS) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.MaxReconnects(0), // the engine owns reconnection policy
		nats.ClosedHandler(func(nc *nats.Conn) {
			cause := nc.LastError()
			if cause == nil {
				cause = ErrClosed
			}
			n.fail(fmt.Errorf("nats connection closed: %w", cause))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats async error")
		}),
	}
	nc, err := nats.Connect(n.url, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	sub, err := nc.Subscribe(n.subject, func(msg *nats.Msg) {
		select {
		case n.messages <- msg.Data:
		case <-n.done:
		default:
			log.Warn().Str("subject", n.subject).Msg("nats inbox full, dropping frame")
		}
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", n.subject, err)
	}

	n.conn = nc
	n.sub = sub
	log.Debug().Str("subject", n.subject).Msg("nats transport connected")
	return nil
}

// Send publishes a frame on the upstream subject.
func (n *NATS) Send(data []byte) error {
	select {
	case <-n.done:
		return ErrClosed
	default:
	}
	if err := n.conn.Publish(n.upward, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Messages returns the inbound frame channel.
func (n *NATS) Messages() <-chan []byte {
	return n.messages
}

// Closed fires once if the connection dies without a local Close.
func (n *NATS) Closed() <-chan error {
	return n.closed
}

// Close unsubscribes and drops the connection. Idempotent.
func (n *NATS) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		if n.sub != nil {
			n.sub.Unsubscribe()
		}
		if n.conn != nil {
			n.conn.Close()
		}
	})
	return nil
}

func (n *NATS) fail(err error) {
	select {
	case <-n.done:
		return
	default:
	}
	select {
	case n.closed <- err:
	default:
	}
}
