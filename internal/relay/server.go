// Package relay is a development relay implementing the wire contract
// the sync engine consumes: welcome with full state, timestamped state
// fan-out, join/leave notices, pong replies and message routing. It
// exists so demos and integration-style tests have an honest
// counterparty; production relay concerns like rate limiting and host
// election are out of scope.
package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Server hosts rooms over one websocket endpoint plus a small HTTP API
// for room discovery and creation.
type Server struct {
	mu       sync.Mutex
	rooms    map[string]*room
	upgrader websocket.Upgrader
}

// NewServer creates an empty relay.
func NewServer() *Server {
	return &Server{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the relay's HTTP handler: /ws for sessions, /rooms for
// discovery and creation, CORS-wrapped for browser clients.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/rooms", s.handleRooms)
	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)
}

// handleRooms lists rooms on GET and creates one on POST.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		type roomInfo struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			PlayerCount int    `json:"playerCount"`
			MaxPlayers  int    `json:"maxPlayers"`
		}
		s.mu.Lock()
		infos := make([]roomInfo, 0, len(s.rooms))
		for _, rm := range s.rooms {
			infos = append(infos, roomInfo{
				ID:          rm.id,
				Name:        rm.name,
				PlayerCount: rm.playerCount(),
				MaxPlayers:  rm.maxPlayers,
			})
		}
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(infos)

	case http.MethodPost:
		var req struct {
			Name       string `json:"name"`
			MaxPlayers int    `json:"maxPlayers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		rm := newRoom(uuid.New().String(), req.Name, req.MaxPlayers)
		s.mu.Lock()
		s.rooms[rm.id] = rm
		s.mu.Unlock()
		log.Info().Str("room", rm.id).Str("name", rm.name).Msg("room created")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          rm.id,
			"name":        rm.name,
			"playerCount": 0,
			"maxPlayers":  rm.maxPlayers,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWS upgrades a session connection. Unknown room ids are created
// on the fly so a bare join works without the discovery API.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		playerID = uuid.New().String()
	}

	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		rm = newRoom(roomID, roomID, 0)
		s.rooms[roomID] = rm
	}
	s.mu.Unlock()

	if rm.maxPlayers > 0 && rm.playerCount() >= rm.maxPlayers {
		http.Error(w, "room is full", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	c := &client{
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	rm.add(c)
	go s.writePump(rm, c)
	go s.readPump(rm, c)
}

func (s *Server) writePump(rm *room, c *client) {
	defer c.drop()
	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("player", c.playerID).Msg("write failed")
				return
			}
		}
	}
}

func (s *Server) readPump(rm *room, c *client) {
	defer rm.remove(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("player", c.playerID).Msg("connection closed unexpectedly")
			}
			return
		}
		rm.handleFrame(c, data)
	}
}
