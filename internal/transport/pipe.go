package transport

import (
	"context"
	"sync"
)

// Pipe is an in-process Transport used by tests and local wiring. Frames
// sent on one end arrive on the other; FailWith simulates an unexpected
// remote closure.
type Pipe struct {
	peer *Pipe

	messages chan []byte
	closed   chan error
	done     chan struct{}

	closeOnce sync.Once

	mu   sync.Mutex
	sent [][]byte
}

// NewPipe returns the two connected ends of an in-process channel.
func NewPipe() (*Pipe, *Pipe) {
	a := &Pipe{
		messages: make(chan []byte, 256),
		closed:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	b := &Pipe{
		messages: make(chan []byte, 256),
		closed:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	a.peer, b.peer = b, a
	return a, b
}

// Connect is a no-op; a pipe is live from creation.
func (p *Pipe) Connect(ctx context.Context) error { return nil }

// Send delivers a frame to the peer end and records it for inspection.
func (p *Pipe) Send(data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	p.mu.Lock()
	p.sent = append(p.sent, data)
	p.mu.Unlock()
	select {
	case p.peer.messages <- data:
	case <-p.peer.done:
		return ErrClosed
	}
	return nil
}

// Messages returns the inbound frame channel.
func (p *Pipe) Messages() <-chan []byte { return p.messages }

// Closed fires once on FailWith.
func (p *Pipe) Closed() <-chan error { return p.closed }

// Close shuts this end down. Idempotent, never signals Closed.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// FailWith simulates an unexpected failure of the underlying channel:
// both ends observe it on their Closed channel.
func (p *Pipe) FailWith(err error) {
	p.failLocal(err)
	p.peer.failLocal(err)
}

func (p *Pipe) failLocal(err error) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.closed <- err:
	default:
	}
	p.closeOnce.Do(func() { close(p.done) })
}

// Sent returns a copy of every frame sent from this end, oldest first.
func (p *Pipe) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.sent))
	copy(out, p.sent)
	return out
}
