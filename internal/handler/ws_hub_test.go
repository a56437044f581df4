package handler

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/freeeve/terrainkit/internal/service"
)

func newTestConn(clientID string) *WSConn {
	return &WSConn{
		conn:     nil, // no real connection for hub tests
		clientID: clientID,
		send:     make(chan []byte, 256),
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	c := newTestConn("bot-1")

	hub.Register(c)
	if hub.ConnectionCount() != 1 {
		t.Errorf("expected 1 connection, got %d", hub.ConnectionCount())
	}

	hub.Unregister(c)
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	c := newTestConn("bot-1")
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Subscribe(c, "plains-1")
	if hub.MapSubscriberCount("plains-1") != 1 {
		t.Errorf("expected 1 subscriber, got %d", hub.MapSubscriberCount("plains-1"))
	}

	hub.Unsubscribe(c, "plains-1")
	if hub.MapSubscriberCount("plains-1") != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.MapSubscriberCount("plains-1"))
	}
}

func TestHubBroadcastToMap(t *testing.T) {
	hub := NewHub()
	c1 := newTestConn("bot-1")
	c2 := newTestConn("bot-2")
	c3 := newTestConn("bot-3") // not subscribed

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)
	defer hub.Unregister(c1)
	defer hub.Unregister(c2)
	defer hub.Unregister(c3)

	hub.Subscribe(c1, "plains-1")
	hub.Subscribe(c2, "plains-1")

	hub.BroadcastToMap("plains-1", WSEvent{
		Type:  service.EventRegionsChanged,
		MapID: "plains-1",
		Data:  []int{3},
	})

	// c1 and c2 should receive, c3 should not
	select {
	case msg := <-c1.send:
		var event WSEvent
		json.Unmarshal(msg, &event)
		if event.Type != service.EventRegionsChanged {
			t.Errorf("expected regions_changed, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Error("c1 did not receive broadcast")
	}

	select {
	case <-c2.send:
		// ok
	case <-time.After(time.Second):
		t.Error("c2 did not receive broadcast")
	}

	select {
	case <-c3.send:
		t.Error("c3 should not have received broadcast")
	default:
		// ok
	}
}

func TestHubBroadcastToClient(t *testing.T) {
	hub := NewHub()
	c1 := newTestConn("bot-1")
	c2 := newTestConn("bot-1") // same client, two connections
	c3 := newTestConn("bot-2")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)
	defer hub.Unregister(c1)
	defer hub.Unregister(c2)
	defer hub.Unregister(c3)

	hub.BroadcastToClient("bot-1", WSEvent{
		Type:  service.EventCacheInvalidated,
		MapID: "plains-1",
		Data:  map[string]string{"mapId": "plains-1"},
	})

	// Both c1 and c2 should receive (same client), c3 should not
	for _, c := range []*WSConn{c1, c2} {
		select {
		case <-c.send:
			// ok
		case <-time.After(time.Second):
			t.Errorf("connection for bot-1 did not receive broadcast")
		}
	}

	select {
	case <-c3.send:
		t.Error("bot-2 should not have received bot-1's message")
	default:
		// ok
	}
}

func TestHubUnregisterCleansUpSubscriptions(t *testing.T) {
	hub := NewHub()
	c := newTestConn("bot-1")
	hub.Register(c)
	hub.Subscribe(c, "plains-1")
	hub.Subscribe(c, "ridge-2")

	hub.Unregister(c)

	if hub.MapSubscriberCount("plains-1") != 0 {
		t.Errorf("expected 0 subscribers for plains-1 after unregister")
	}
	if hub.MapSubscriberCount("ridge-2") != 0 {
		t.Errorf("expected 0 subscribers for ridge-2 after unregister")
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	// Concurrently register, subscribe, broadcast, unregister
	for i := range 50 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := newTestConn("bot")
			hub.Register(c)
			hub.Subscribe(c, "plains-1")
			hub.BroadcastToMap("plains-1", WSEvent{Type: "test", MapID: "plains-1"})
			hub.Unsubscribe(c, "plains-1")
			hub.Unregister(c)
		}(i)
	}

	wg.Wait()
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections after concurrent test, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastMapEvent(t *testing.T) {
	hub := NewHub()
	c := newTestConn("bot-1")
	hub.Register(c)
	defer hub.Unregister(c)
	hub.Subscribe(c, "plains-1")

	hub.BroadcastMapEvent("plains-1", service.EventUnitDestroyed, map[string]uint64{"tag": 77})

	select {
	case msg := <-c.send:
		var event WSEvent
		json.Unmarshal(msg, &event)
		if event.Type != service.EventUnitDestroyed {
			t.Errorf("expected unit_destroyed, got %s", event.Type)
		}
		if event.MapID != "plains-1" {
			t.Errorf("expected plains-1, got %s", event.MapID)
		}
	case <-time.After(time.Second):
		t.Error("did not receive broadcast")
	}
}

func TestWSEventWireFormat(t *testing.T) {
	data, err := json.Marshal(WSEvent{Type: service.EventCacheInvalidated, MapID: "ridge-2"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"cache_invalidated","map_id":"ridge-2","data":null}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	var msg ClientMessage
	if err := json.Unmarshal([]byte(`{"action":"subscribe","map_id":"plains-1"}`), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Action != "subscribe" || msg.MapID != "plains-1" {
		t.Errorf("unexpected client message %+v", msg)
	}
}

func TestHubUnregisterTwice(t *testing.T) {
	hub := NewHub()
	c := newTestConn("bot-1")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}
