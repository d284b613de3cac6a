package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebsocketConfig holds tuning for a websocket transport.
type WebsocketConfig struct {
	WriteTimeout    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
}

// DefaultWebsocketConfig returns the defaults used by WebsocketDialer.
func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
	}
}

// Websocket is a Transport over a single gorilla/websocket connection.
// Reads and writes each run on their own pump goroutine; Send never
// touches the connection directly.
type Websocket struct {
	url    string
	config WebsocketConfig

	conn     *websocket.Conn
	send     chan []byte
	messages chan []byte
	closed   chan error
	done     chan struct{}

	closeOnce sync.Once
	failOnce  sync.Once
}

// NewWebsocket creates an unconnected websocket transport for the given URL.
func NewWebsocket(rawURL string, config WebsocketConfig) *Websocket {
	return &Websocket{
		url:      rawURL,
		config:   config,
		send:     make(chan []byte, config.SendBuffer),
		messages: make(chan []byte, config.SendBuffer),
		closed:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// WebsocketDialer returns a Dialer that connects to a relay's websocket
// endpoint, identifying the room and player by query parameters.
func WebsocketDialer(baseURL string) Dialer {
	return func(ctx context.Context, roomID, playerID string) (Transport, error) {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse relay url: %w", err)
		}
		q := u.Query()
		q.Set("room", roomID)
		q.Set("player", playerID)
		u.RawQuery = q.Encode()

		ws := NewWebsocket(u.String(), DefaultWebsocketConfig())
		if err := ws.Connect(ctx); err != nil {
			return nil, err
		}
		return ws, nil
	}
}

// Connect dials the relay and starts the read and write pumps.
func (w *Websocket) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		ReadBufferSize:  w.config.ReadBufferSize,
		WriteBufferSize: w.config.WriteBufferSize,
	}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.url, err)
	}
	w.conn = conn
	conn.SetReadLimit(w.config.MaxMessageSize)

	go w.writePump()
	go w.readPump()

	log.Debug().Str("url", w.url).Msg("websocket transport connected")
	return nil
}

// Send queues a frame for transmission. Frames are dropped with an error
// when the send buffer is full or the transport is closed; the engine's
// change-only ticks supersede dropped frames on their own.
func (w *Websocket) Send(data []byte) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.send <- data:
		return nil
	case <-w.done:
		return ErrClosed
	default:
		return fmt.Errorf("websocket send buffer full")
	}
}

// Messages returns the inbound frame channel. It is closed when the
// connection dies.
func (w *Websocket) Messages() <-chan []byte {
	return w.messages
}

// Closed fires once if the connection dies without a local Close.
func (w *Websocket) Closed() <-chan error {
	return w.closed
}

// Close tears the connection down. Safe to call multiple times; a closed
// transport never signals Closed.
func (w *Websocket) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.conn != nil {
			w.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			w.conn.Close()
		}
	})
	return nil
}

// fail reports an unexpected closure exactly once and tears down the
// connection so both pumps exit.
func (w *Websocket) fail(err error) {
	select {
	case <-w.done:
		return // locally closed, not a failure
	default:
	}
	w.failOnce.Do(func() {
		w.closed <- err
		w.closeOnce.Do(func() {
			close(w.done)
			w.conn.Close()
		})
	})
}

func (w *Websocket) writePump() {
	for {
		select {
		case <-w.done:
			return
		case data := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				w.fail(fmt.Errorf("websocket write: %w", err))
				return
			}
		}
	}
}

func (w *Websocket) readPump() {
	defer close(w.messages)
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			w.fail(fmt.Errorf("websocket read: %w", err))
			return
		}
		select {
		case w.messages <- data:
		case <-w.done:
			return
		}
	}
}
