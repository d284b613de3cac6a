package engine

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// EventKind discriminates Event implementations.
type EventKind string

const (
	KindConnected       EventKind = "Connected"
	KindDisconnected    EventKind = "Disconnected"
	KindReconnecting    EventKind = "Reconnecting"
	KindReconnectFailed EventKind = "ReconnectFailed"
	KindPeerJoined      EventKind = "PeerJoined"
	KindPeerLeft        EventKind = "PeerLeft"
	KindMessage         EventKind = "Message"
	KindError           EventKind = "Error"
)

// Event is the tagged union delivered on the client's event channel.
type Event interface {
	Kind() EventKind
}

// ConnectedEvent fires after a successful join or reconnect.
type ConnectedEvent struct {
	RoomID      string
	PlayerCount int
	Reconnect   bool
}

// DisconnectedEvent fires once on explicit leave.
type DisconnectedEvent struct {
	RoomID string
}

// ReconnectingEvent fires each time a retry is scheduled.
type ReconnectingEvent struct {
	Attempt int
	DelayMs int64
}

// ReconnectFailedEvent fires when the attempt ceiling is reached; the
// session is terminal until a fresh Join.
type ReconnectFailedEvent struct {
	Attempts int
	Err      error
}

// PeerJoinedEvent fires when the relay announces a new participant.
type PeerJoinedEvent struct {
	PlayerID string
}

// PeerLeftEvent fires when a participant departs.
type PeerLeftEvent struct {
	PlayerID string
}

// MessageEvent carries an application-level broadcast from another peer.
type MessageEvent struct {
	From string
	Data json.RawMessage
}

// ErrorEvent surfaces errors caught inside timer and message callbacks.
type ErrorEvent struct {
	Err error
}

func (ConnectedEvent) Kind() EventKind       { return KindConnected }
func (DisconnectedEvent) Kind() EventKind    { return KindDisconnected }
func (ReconnectingEvent) Kind() EventKind    { return KindReconnecting }
func (ReconnectFailedEvent) Kind() EventKind { return KindReconnectFailed }
func (PeerJoinedEvent) Kind() EventKind      { return KindPeerJoined }
func (PeerLeftEvent) Kind() EventKind        { return KindPeerLeft }
func (MessageEvent) Kind() EventKind         { return KindMessage }
func (ErrorEvent) Kind() EventKind           { return KindError }

// emit delivers an event without blocking the run loop; a full buffer
// drops the event with a warning.
func emit(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		log.Warn().Str("kind", string(ev.Kind())).Msg("event buffer full, dropping event")
	}
}
