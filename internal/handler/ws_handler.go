package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/terrainkit/internal/auth"
	"github.com/freeeve/terrainkit/internal/service"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // < pongWait
	maxMsgSize  = 1024
	sendBufSize = 256
)

// Events sent only to the requesting connection.
const (
	eventConnected  = "connected"
	eventSubscribed = "subscribed"
	eventError      = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // bots connect from anywhere; the token is the gate
	},
}

// WSHandler upgrades bot clients to a terrain event stream.
type WSHandler struct {
	hub    *Hub
	maps   *service.MapService
	jwtMgr *auth.JWTManager
}

func NewWSHandler(hub *Hub, maps *service.MapService, jwtMgr *auth.JWTManager) *WSHandler {
	return &WSHandler{hub: hub, maps: maps, jwtMgr: jwtMgr}
}

// ServeWS handles GET /api/v1/ws. The access token comes in ?token= since
// browsers and most bot SDKs cannot set headers on the upgrade request.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "missing token parameter")
		return
	}
	claims, err := h.jwtMgr.ValidateToken(tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if !claims.HasScope(auth.ScopeRead) {
		writeError(w, http.StatusForbidden, "read scope required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &WSConn{
		conn:     conn,
		clientID: claims.ClientID,
		send:     make(chan []byte, sendBufSize),
	}
	h.hub.Register(c)
	h.reply(c, WSEvent{Type: eventConnected, Data: map[string]string{"clientId": c.clientID}})

	go h.writePump(c)
	go h.readPump(c)

	log.Info().Str("clientId", c.clientID).Int("total", h.hub.ConnectionCount()).Msg("Terrain stream opened")
}

// handleMessage applies one client message. Subscribing to a map the
// service does not know is answered with an error event.
func (h *WSHandler) handleMessage(c *WSConn, msg ClientMessage) {
	if msg.MapID == "" {
		h.reply(c, WSEvent{Type: eventError, Data: map[string]string{"error": "map_id is required"}})
		return
	}
	switch msg.Action {
	case "subscribe":
		info, err := h.maps.Info(msg.MapID)
		if err != nil {
			h.reply(c, WSEvent{Type: eventError, MapID: msg.MapID, Data: map[string]string{"error": err.Error()}})
			return
		}
		h.hub.Subscribe(c, msg.MapID)
		h.reply(c, WSEvent{Type: eventSubscribed, MapID: msg.MapID, Data: info})
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.MapID)
	default:
		h.reply(c, WSEvent{Type: eventError, MapID: msg.MapID, Data: map[string]string{"error": "unknown action " + msg.Action}})
	}
}

func (h *WSHandler) reply(c *WSConn, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal WS reply")
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("clientId", c.clientID).Msg("WS send buffer full, dropping reply")
	}
}

func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("clientId", c.clientID).Msg("Terrain stream closed")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("clientId", c.clientID).Msg("Terrain stream unexpected close")
			}
			return
		}
		h.handleMessage(c, msg)
	}
}

// writePump sends one frame per event so clients can decode each frame as
// a single JSON object.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
