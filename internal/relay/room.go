package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/roomsync/roomsync/internal/wire"
)

// client is one connected participant in a room. done closes when the
// client is dropped; the send channel itself is never closed, so
// concurrent fan-out can race removal safely.
type client struct {
	playerID string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	dropOnce sync.Once
}

// drop marks the client dead and unwinds both pumps. Idempotent.
func (c *client) drop() {
	c.dropOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// room holds the relay-side view of one session: live connections plus
// the last record each participant published. The record map is what a
// late joiner or a reconnecting client receives as full state.
type room struct {
	id         string
	name       string
	maxPlayers int

	mu      sync.Mutex
	clients map[string]*client
	records map[string]wire.Record
	tick    int
}

func newRoom(id, name string, maxPlayers int) *room {
	return &room{
		id:         id,
		name:       name,
		maxPlayers: maxPlayers,
		clients:    make(map[string]*client),
		records:    make(map[string]wire.Record),
	}
}

func (r *room) playerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// add registers a connection, sends it the welcome payload, and
// announces the join to everyone else.
func (r *room) add(c *client) {
	r.mu.Lock()
	if old, ok := r.clients[c.playerID]; ok {
		// Reconnect before the stale connection noticed; replace it.
		old.drop()
	}
	r.clients[c.playerID] = c
	welcome := &wire.Message{
		Type:        wire.TypeWelcome,
		State:       r.stateLocked(),
		PlayerCount: len(r.clients),
		Tick:        r.tick,
		ServerTime:  nowMs(),
	}
	r.mu.Unlock()

	r.sendTo(c, welcome)
	r.broadcast(&wire.Message{Type: wire.TypeJoin, PlayerID: c.playerID}, c.playerID)
	log.Info().Str("room", r.id).Str("player", c.playerID).Msg("player joined")
}

// remove drops a connection, forgets its record, and announces the
// leave. A reconnecting player replaces its entry before the stale
// connection unwinds, so removal only applies to the exact connection.
func (r *room) remove(c *client) {
	r.mu.Lock()
	current, ok := r.clients[c.playerID]
	if !ok || current != c {
		r.mu.Unlock()
		return
	}
	delete(r.clients, c.playerID)
	delete(r.records, c.playerID)
	empty := len(r.clients) == 0
	r.mu.Unlock()
	c.drop()

	r.broadcast(&wire.Message{Type: wire.TypeLeave, PlayerID: c.playerID}, c.playerID)
	log.Info().Str("room", r.id).Str("player", c.playerID).Bool("empty", empty).Msg("player left")
}

// handleFrame processes one frame from a participant.
func (r *room) handleFrame(from *client, data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		// Client state frames carry no playerId; the relay stamps it.
		var raw wire.Message
		if jsonErr := json.Unmarshal(data, &raw); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("player", from.playerID).Msg("dropping malformed frame")
			return
		}
		msg = &raw
	}

	switch msg.Type {
	case wire.TypeState:
		rec, err := msg.StateRecord()
		if err != nil {
			log.Warn().Err(err).Str("player", from.playerID).Msg("dropping undecodable state record")
			return
		}
		r.mu.Lock()
		r.records[from.playerID] = rec
		r.tick++
		r.mu.Unlock()
		r.broadcast(&wire.Message{
			Type:       wire.TypeState,
			PlayerID:   from.playerID,
			Data:       msg.Data,
			ServerTime: nowMs(),
		}, from.playerID)

	case wire.TypePing:
		r.sendTo(from, &wire.Message{Type: wire.TypePong, ServerTime: nowMs()})

	case wire.TypeBroadcast:
		r.broadcast(&wire.Message{
			Type:       wire.TypeMessage,
			From:       from.playerID,
			Data:       msg.Data,
			ServerTime: nowMs(),
		}, from.playerID)

	default:
		log.Debug().Str("type", string(msg.Type)).Str("player", from.playerID).Msg("ignoring unexpected client frame")
	}
}

// stateLocked snapshots every stored record; callers hold r.mu.
func (r *room) stateLocked() map[string]wire.Record {
	state := make(map[string]wire.Record, len(r.records))
	for id, rec := range r.records {
		state[id] = rec
	}
	return state
}

// broadcast fans a frame out to every participant except the originator.
func (r *room) broadcast(msg *wire.Message, except string) {
	frame, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to encode broadcast frame")
		return
	}

	r.mu.Lock()
	targets := make([]*client, 0, len(r.clients))
	for id, c := range r.clients {
		if id != except {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		select {
		case c.send <- frame:
		case <-c.done:
		default:
			log.Warn().Str("player", c.playerID).Msg("send buffer full, closing connection")
			c.drop()
		}
	}
}

func (r *room) sendTo(c *client, msg *wire.Message) {
	frame, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to encode frame")
		return
	}
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		log.Warn().Str("player", c.playerID).Msg("send buffer full, dropping frame")
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
