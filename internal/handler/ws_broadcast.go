package handler

import "github.com/freeeve/terrainkit/internal/service"

// BroadcastMapEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastMapEvent(mapID string, eventType string, data any) {
	h.BroadcastToMap(mapID, WSEvent{
		Type:  eventType,
		MapID: mapID,
		Data:  data,
	})
}

var _ service.Broadcaster = (*Hub)(nil)
