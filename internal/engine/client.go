package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roomsync/roomsync/internal/transport"
	"github.com/roomsync/roomsync/internal/wire"
)

const eventBuffer = 64

// Option configures a Client at construction.
type Option func(*Client)

// WithClock substitutes the clock driving every timer, so tests advance
// virtual time instead of sleeping.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithPlayerID fixes the local peer id instead of generating one.
func WithPlayerID(id string) Option {
	return func(c *Client) { c.playerID = id }
}

// Client is the top-level session orchestrator. It binds to one peer
// collection, owns the transport lifecycle, and runs the broadcast,
// render and ping timers on a single goroutine so all engine state stays
// loop-owned.
type Client struct {
	cfg      Config
	clock    clockwork.Clock
	dial     transport.Dialer
	playerID string

	events chan Event

	binding *StateBinding

	mu      sync.Mutex
	tr      transport.Transport
	roomID  string
	running bool
	rtt     time.Duration
	reconn  *ReconnectionManager

	// per-session, recreated on each Join
	bcast *Broadcaster
	recv  *RemoteStateReceiver
	csync *ClockSync

	leaveMu   sync.Mutex
	leaveOnce *sync.Once
	leaveCh   chan struct{}
	doneCh    chan struct{}

	redialCh chan redialResult
}

type redialResult struct {
	tr  transport.Transport
	err error
}

// NewClient creates an engine client that dials rooms through the given
// dialer. The local peer id defaults to a fresh UUID.
func NewClient(cfg Config, dial transport.Dialer, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg.withDefaults(),
		clock:    clockwork.NewRealClock(),
		dial:     dial,
		playerID: uuid.New().String(),
		events:   make(chan Event, eventBuffer),
		redialCh: make(chan redialResult, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.csync = NewClockSync(c.clock)
	return c
}

// PlayerID returns the local peer id.
func (c *Client) PlayerID() string { return c.playerID }

// Events returns the client's event channel. Events are dropped with a
// warning when the buffer fills; consume promptly.
func (c *Client) Events() <-chan Event { return c.events }

// State returns the connection lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconn == nil {
		return StateDisconnected
	}
	return c.reconn.State()
}

// Latency returns the last measured round-trip latency.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// Bind attaches the client to the peer collection an adapter exposes.
// Must be called before Join; the binding is fixed per session.
func (c *Client) Bind(adapter CollectionAdapter) error {
	c.binding = Bind(adapter)
	return c.binding.Err()
}

// BindState heuristically locates the peer collection inside an
// arbitrary state object. A binding failure is soft: Join still
// connects, but synchronization no-ops. The returned error lets callers
// surface the condition instead.
func (c *Client) BindState(state map[string]any) error {
	c.binding = BindState(state)
	return c.binding.Err()
}

// BindCollection attaches directly to a peer-id-keyed map.
func (c *Client) BindCollection(coll map[string]any) error {
	c.binding = BindCollection(coll)
	return c.binding.Err()
}

// UpdateLocal mutates the local peer's record under the binding lock.
// This is the write half of the shared-collection convention: the
// application owns its own entry, the engine owns everyone else's.
func (c *Client) UpdateLocal(fn func(rec wire.Record)) {
	if c.binding == nil {
		return
	}
	c.binding.MutatePeer(c.playerID, fn)
}

// Peer returns a copy of a peer's record, or nil. The copy is safe to
// read while the engine keeps updating the live entry.
func (c *Client) Peer(id string) wire.Record {
	if c.binding == nil {
		return nil
	}
	return c.binding.Peer(id)
}

// PeerIDs returns the ids currently present in the bound collection,
// read under the binding lock.
func (c *Client) PeerIDs() []string {
	if c.binding == nil {
		return nil
	}
	return c.binding.PeerIDs()
}

// Join connects to a room and suspends until the relay's welcome message
// or the connect timeout. Prior peers are cleared before the new room's
// first message can arrive. A timed-out join is not retried.
func (c *Client) Join(ctx context.Context, roomID string) error {
	// Claim the session before releasing the lock so a concurrent Join
	// fails here instead of racing the installation below.
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("session already active in room %s, leave first", c.roomID)
	}
	c.running = true
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}

	if c.binding == nil {
		c.binding = BindCollection(map[string]any{})
	}
	c.binding.ClearRemote(c.playerID)

	tr, err := c.dial(ctx, roomID, c.playerID)
	if err != nil {
		release()
		return fmt.Errorf("dial room %s: %w", roomID, err)
	}

	welcome, err := c.awaitWelcome(ctx, tr)
	if err != nil {
		tr.Close()
		release()
		return err
	}

	recv := NewRemoteStateReceiver(c.cfg, c.playerID, c.binding, c.csync)
	if welcome.ServerTime != 0 {
		c.csync.Observe(welcome.ServerTime)
	}
	recv.ApplyFullState(welcome.State)

	c.leaveMu.Lock()
	c.leaveOnce = &sync.Once{}
	c.leaveCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	leaveCh, doneCh := c.leaveCh, c.doneCh
	c.leaveMu.Unlock()

	c.mu.Lock()
	c.tr = tr
	c.roomID = roomID
	c.recv = recv
	c.bcast = NewBroadcaster(c.binding, c.playerID)
	c.reconn = NewReconnectionManager(c.cfg.MaxReconnectAttempts)
	c.mu.Unlock()

	emit(c.events, ConnectedEvent{RoomID: roomID, PlayerCount: welcome.PlayerCount})
	log.Info().Str("room", roomID).Str("player", c.playerID).Int("players", welcome.PlayerCount).Msg("joined room")

	go c.run(tr, leaveCh, doneCh)
	return nil
}

// awaitWelcome reads frames until the relay acknowledges the join.
// Frames other than welcome are ignored; components able to consume them
// do not exist until the session is established.
func (c *Client) awaitWelcome(ctx context.Context, tr transport.Transport) (*wire.Message, error) {
	timeout := c.clock.NewTimer(c.cfg.ConnectTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.Chan():
			return nil, ErrConnectTimeout
		case err := <-tr.Closed():
			return nil, fmt.Errorf("transport closed during join: %w", err)
		case data, ok := <-tr.Messages():
			if !ok {
				return nil, fmt.Errorf("transport closed during join")
			}
			msg, err := wire.Decode(data)
			if err != nil {
				log.Warn().Err(err).Msg("dropping malformed frame during join")
				continue
			}
			if msg.Type == wire.TypeWelcome {
				return msg, nil
			}
		}
	}
}

// Leave tears the session down: all timers stop, the transport closes,
// and any pending reconnect attempt is cancelled. It returns once the
// session loop has exited, so an immediate re-Join is safe. Idempotent
// in any connection state.
func (c *Client) Leave() {
	c.leaveMu.Lock()
	once, ch, done := c.leaveOnce, c.leaveCh, c.doneCh
	c.leaveMu.Unlock()
	if once == nil {
		return
	}
	once.Do(func() { close(ch) })
	<-done
}

// Broadcast sends an application-level payload to every peer in the
// room. It does not touch the synchronized state.
func (c *Client) Broadcast(payload any) error {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil {
		return ErrSessionClosed
	}
	msg, err := wire.NewBroadcast(payload)
	if err != nil {
		return err
	}
	frame, err := msg.Encode()
	if err != nil {
		return err
	}
	return tr.Send(frame)
}

// run is the session loop: every timer tick, inbound frame, transport
// failure and reconnect step is handled here, on one goroutine.
func (c *Client) run(tr transport.Transport, leaveCh, doneCh chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.tr = nil
		c.mu.Unlock()
		close(doneCh)
	}()

	broadcastTick := c.clock.NewTicker(time.Second / time.Duration(c.cfg.TickRate))
	renderTick := c.clock.NewTicker(time.Second / time.Duration(c.cfg.RenderRate))
	pingTick := c.clock.NewTicker(c.cfg.PingInterval)
	defer broadcastTick.Stop()
	defer renderTick.Stop()
	defer pingTick.Stop()

	msgCh := tr.Messages()
	closedCh := tr.Closed()
	var retryTimer clockwork.Timer
	var retryCh <-chan time.Time

	for {
		select {
		case <-leaveCh:
			c.mu.Lock()
			c.reconn.Disconnected()
			roomID := c.roomID
			c.mu.Unlock()
			if retryTimer != nil {
				retryTimer.Stop()
			}
			if tr != nil {
				tr.Close()
			}
			emit(c.events, DisconnectedEvent{RoomID: roomID})
			log.Info().Str("room", roomID).Msg("left room")
			return

		case <-broadcastTick.Chan():
			if tr == nil {
				continue // between reconnect attempts, nothing to send on
			}
			if err := c.bcast.Flush(tr.Send); err != nil {
				// Send failures are expected around closures; the next
				// tick supersedes the dropped frame.
				log.Debug().Err(err).Msg("broadcast tick skipped")
			}

		case <-renderTick.Chan():
			c.recv.RenderTick()

		case <-pingTick.Chan():
			if tr == nil {
				continue
			}
			frame, err := wire.NewPing().Encode()
			if err != nil {
				continue
			}
			if err := tr.Send(frame); err == nil {
				c.csync.MarkPing()
			}

		case data, ok := <-msgCh:
			if !ok {
				msgCh = nil
				continue
			}
			c.handleFrame(data)

		case err := <-closedCh:
			log.Warn().Err(err).Str("room", c.roomID).Msg("transport closed unexpectedly")
			tr = nil
			msgCh, closedCh = nil, nil
			retryTimer, retryCh = c.scheduleRetry(err)
			if retryTimer == nil && c.State() == StateFailed {
				return
			}

		case <-retryCh:
			retryCh = nil
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
				defer cancel()
				t, err := c.dial(ctx, c.roomID, c.playerID)
				c.redialCh <- redialResult{tr: t, err: err}
			}()

		case res := <-c.redialCh:
			if res.err != nil {
				log.Warn().Err(res.err).Int("attempt", c.reconnAttempt()).Msg("reconnect attempt failed")
				retryTimer, retryCh = c.scheduleRetry(res.err)
				if retryTimer == nil && c.State() == StateFailed {
					return
				}
				continue
			}
			tr = res.tr
			msgCh = tr.Messages()
			closedCh = tr.Closed()
			c.mu.Lock()
			c.tr = tr
			c.reconn.Connected()
			roomID := c.roomID
			c.mu.Unlock()
			c.bcast.Reset()
			emit(c.events, ConnectedEvent{RoomID: roomID, Reconnect: true})
			log.Info().Str("room", roomID).Msg("reconnected, awaiting full state from relay")
		}
	}
}

// scheduleRetry advances the reconnection state machine. It returns a
// nil timer when no further attempts will be made, either because
// reconnection is disabled or the ceiling was reached.
func (c *Client) scheduleRetry(cause error) (clockwork.Timer, <-chan time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tr = nil

	if !c.cfg.AutoReconnect {
		c.reconn.Fail()
		emit(c.events, ErrorEvent{Err: fmt.Errorf("transport closed with reconnection disabled: %w", cause)})
		return nil, nil
	}

	delay, ok := c.reconn.NextAttempt()
	if !ok {
		emit(c.events, ReconnectFailedEvent{Attempts: c.cfg.MaxReconnectAttempts, Err: ErrReconnectExhausted})
		log.Error().Int("attempts", c.cfg.MaxReconnectAttempts).Msg("reconnect attempts exhausted")
		return nil, nil
	}

	emit(c.events, ReconnectingEvent{Attempt: c.reconn.Attempt(), DelayMs: delay.Milliseconds()})
	log.Info().Int("attempt", c.reconn.Attempt()).Dur("delay", delay).Msg("scheduling reconnect")
	timer := c.clock.NewTimer(delay)
	return timer, timer.Chan()
}

func (c *Client) reconnAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconn.Attempt()
}

// handleFrame routes one inbound frame. Malformed frames are logged and
// dropped; a bad peer can degrade its own updates but never kill a
// timer callback.
func (c *Client) handleFrame(data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed frame")
		emit(c.events, ErrorEvent{Err: err})
		return
	}
	if msg.ServerTime != 0 {
		c.csync.Observe(msg.ServerTime)
	}

	switch msg.Type {
	case wire.TypeState:
		rec, err := msg.StateRecord()
		if err != nil {
			log.Warn().Err(err).Str("player", msg.PlayerID).Msg("dropping undecodable state record")
			return
		}
		c.recv.ApplyState(msg.PlayerID, rec, msg.ServerTime)

	case wire.TypeWelcome, wire.TypeFullState:
		c.recv.ApplyFullState(msg.State)

	case wire.TypeJoin:
		emit(c.events, PeerJoinedEvent{PlayerID: msg.PlayerID})

	case wire.TypeLeave:
		c.recv.RemovePeer(msg.PlayerID)
		emit(c.events, PeerLeftEvent{PlayerID: msg.PlayerID})

	case wire.TypeMessage:
		if msg.From == c.playerID {
			return
		}
		emit(c.events, MessageEvent{From: msg.From, Data: msg.Data})

	case wire.TypePong:
		rtt := c.csync.ObservePong()
		c.mu.Lock()
		c.rtt = rtt
		c.mu.Unlock()

	default:
		// Outbound-only types looping back (ping, broadcast, own state)
		// are ignored.
	}
}
