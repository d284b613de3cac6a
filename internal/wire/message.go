package wire

import (
	"encoding/json"
	"fmt"
)

// Type identifies a wire message. Every frame on the relay channel is a
// single JSON object carrying exactly one of these types.
type Type string

const (
	TypeState     Type = "state"
	TypeWelcome   Type = "welcome"
	TypeFullState Type = "full_state"
	TypeJoin      Type = "join"
	TypeLeave     Type = "leave"
	TypeMessage   Type = "message"
	TypeBroadcast Type = "broadcast"
	TypePing      Type = "ping"
	TypePong      Type = "pong"
)

// Record is a peer's synchronized field set. Values are JSON-compatible;
// numbers decode as float64.
type Record = map[string]any

// Message is the envelope for all relay traffic. Fields are populated
// depending on Type; Decode validates the required ones.
type Message struct {
	Type        Type              `json:"type"`
	PlayerID    string            `json:"playerId,omitempty"`
	From        string            `json:"from,omitempty"`
	Data        json.RawMessage   `json:"data,omitempty"`
	State       map[string]Record `json:"state,omitempty"`
	PlayerCount int               `json:"playerCount,omitempty"`
	Tick        int               `json:"tick,omitempty"`
	ServerTime  int64             `json:"serverTime,omitempty"`
}

// Decode parses a single frame and validates the fields its type requires.
// A frame that is not JSON, has no recognized type, or is missing required
// fields returns an error; callers are expected to log and drop it.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch msg.Type {
	case TypeState:
		if msg.PlayerID == "" {
			return nil, fmt.Errorf("state message missing playerId")
		}
		if len(msg.Data) == 0 {
			return nil, fmt.Errorf("state message missing data")
		}
	case TypeWelcome, TypeFullState:
		// A nil State means an empty room; the key is omitted on the wire.
	case TypeJoin, TypeLeave:
		if msg.PlayerID == "" {
			return nil, fmt.Errorf("%s message missing playerId", msg.Type)
		}
	case TypeMessage:
		if msg.From == "" {
			return nil, fmt.Errorf("message missing from")
		}
	case TypePong, TypePing, TypeBroadcast:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}

	return &msg, nil
}

// Encode serializes a message to a single JSON frame.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", m.Type, err)
	}
	return data, nil
}

// StateRecord decodes the Data payload of a state message into a Record.
func (m *Message) StateRecord() (Record, error) {
	var rec Record
	if err := json.Unmarshal(m.Data, &rec); err != nil {
		return nil, fmt.Errorf("decode state record: %w", err)
	}
	return rec, nil
}

// NewState builds an outbound state frame carrying the local record.
func NewState(rec Record) (*Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode state record: %w", err)
	}
	return &Message{Type: TypeState, Data: data}, nil
}

// NewBroadcast builds an outbound application broadcast frame.
func NewBroadcast(payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode broadcast payload: %w", err)
	}
	return &Message{Type: TypeBroadcast, Data: data}, nil
}

// NewPing builds an outbound latency probe.
func NewPing() *Message {
	return &Message{Type: TypePing}
}
