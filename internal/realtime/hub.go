package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub tracks every live connection and the room (one per poll session) each
// one belongs to. It only moves bytes: poll state never lives here, and a
// send to a vanished room or connection is a no-op.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Client
	rooms  map[string]map[string]*Client
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:  make(map[string]*Client),
		rooms:  make(map[string]map[string]*Client),
		logger: logger,
	}
}

// Register adds a freshly upgraded connection. Clients join a room later,
// once their init message resolves to a session.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
}

// Unregister drops a connection and removes it from its room, if any.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.conns, c.ID)
	if c.room != "" {
		if m, ok := h.rooms[c.room]; ok {
			delete(m, c.ID)
			if len(m) == 0 {
				delete(h.rooms, c.room)
			}
		}
		c.room = ""
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// JoinRoom moves a connection into a room, leaving any previous one.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if c.room != "" && c.room != roomID {
		if m, ok := h.rooms[c.room]; ok {
			delete(m, c.ID)
			if len(m) == 0 {
				delete(h.rooms, c.room)
			}
		}
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][c.ID] = c
	c.room = roomID
	h.logger.Debug("client joined room", zap.String("client_id", connID), zap.String("room_id", roomID))
}

// LeaveRoom removes a connection from a room while keeping it connected.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if m, ok := h.rooms[roomID]; ok {
		delete(m, connID)
		if len(m) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if c.room == roomID {
		c.room = ""
	}
}

// IsConnected reports whether the connection is still registered. Used to
// discard stale pending students.
func (h *Hub) IsConnected(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[connID]
	return ok
}

// SendToConn sends a message to a single connection.
func (h *Hub) SendToConn(connID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		// buffer full, skip
	}
}

// BroadcastToRoom sends a message to every connection in a room.
func (h *Hub) BroadcastToRoom(roomID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[roomID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
