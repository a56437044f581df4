package service

// Event types pushed to clients watching a map.
const (
	EventAnalysisCompleted = "analysis_completed"
	EventUnitDestroyed     = "unit_destroyed"
	EventRegionsChanged    = "regions_changed"
	EventCacheInvalidated  = "cache_invalidated"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastMapEvent(mapID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMapEvent(string, string, any) {}
