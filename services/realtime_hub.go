package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// RealtimeEvent is the envelope pushed over the websocket: an event name
// ("alert.created", ...) plus its JSON payload.
type RealtimeEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// WSClient is one open websocket. Writes go through Send; gorilla connections
// do not allow concurrent writers, so the mutex covers both broadcasts and
// keepalive pings.
type WSClient struct {
	UserID uint
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

func (c *WSClient) Send(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.Conn.WriteMessage(messageType, data)
}

// RealtimeHub fans sync, dedup, and extraction alerts out to a user's open
// websocket connections. The mobile client keeps one open while foregrounded.
type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*WSClient]struct{}
}

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{clients: make(map[uint]map[*WSClient]struct{})}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*WSClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// Broadcast delivers an event to every open connection the user has. Slow or
// dead connections fail their write and are cleaned up by the reader loop;
// delivery is best effort.
func (h *RealtimeHub) Broadcast(userID uint, event string, payload any) {
	msg, err := json.Marshal(RealtimeEvent{Event: event, Payload: payload})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		_ = c.Send(websocket.TextMessage, msg)
	}
}
