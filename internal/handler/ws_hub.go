package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type  string `json:"type"`
	MapID string `json:"map_id"`
	Data  any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	MapID  string `json:"map_id"`
}

// WSConn wraps a WebSocket connection with its client and subscriptions.
type WSConn struct {
	conn     *websocket.Conn
	clientID string
	send     chan []byte
}

// Hub manages WebSocket connections and map-channel subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	maps        map[string]map[*WSConn]bool // mapID -> set of connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		maps:        make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for mapID, conns := range h.maps {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.maps, mapID)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a map channel.
func (h *Hub) Subscribe(c *WSConn, mapID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maps[mapID] == nil {
		h.maps[mapID] = make(map[*WSConn]bool)
	}
	h.maps[mapID][c] = true
}

// Unsubscribe removes a connection from a map channel.
func (h *Hub) Unsubscribe(c *WSConn, mapID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.maps[mapID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.maps, mapID)
		}
	}
}

// BroadcastToMap sends an event to all connections subscribed to a map.
func (h *Hub) BroadcastToMap(mapID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("map", mapID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.maps[mapID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("clientId", c.clientID).Str("map", mapID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// BroadcastToClient sends an event to a specific client across all its connections.
func (h *Hub) BroadcastToClient(clientID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("clientId", clientID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c.clientID == clientID {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// MapSubscriberCount returns the number of connections subscribed to a map.
func (h *Hub) MapSubscriberCount(mapID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.maps[mapID])
}
