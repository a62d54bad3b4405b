package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

func testClient(h *Hub, userID string) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 256),
		userID: userID,
	}
}

func startHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)
	return cancel
}

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	cancel := startHub(t, h)
	defer cancel()

	client := testClient(h, "user-1")
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	if n := h.UserConnections("user-1"); n != 1 {
		t.Errorf("Expected 1 connection for user-1, got %d", n)
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	if n := h.UserConnections("user-1"); n != 0 {
		t.Errorf("Expected 0 connections after unregister, got %d", n)
	}
	stats := h.Stats()
	if stats["connectedUsers"].(int) != 0 {
		t.Errorf("Expected empty user registry, got %v", stats["connectedUsers"])
	}
}

func TestHub_SendToUser(t *testing.T) {
	h := testHub()
	cancel := startHub(t, h)
	defer cancel()

	target := testClient(h, "user-1")
	other := testClient(h, "user-2")
	h.register <- target
	h.register <- other
	time.Sleep(50 * time.Millisecond)

	h.SendToUser("user-1", &Event{
		Type:      EventAlertNew,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"id": "alt_1"},
	})

	select {
	case msg := <-target.send:
		var event Event
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != EventAlertNew {
			t.Errorf("event type = %v, want alert:new", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for user event")
	}

	select {
	case <-other.send:
		t.Error("user-2 should NOT receive user-1's alert")
	default:
	}
}

func TestHub_SendToUserAllConnections(t *testing.T) {
	h := testHub()
	cancel := startHub(t, h)
	defer cancel()

	// Same user on two devices
	first := testClient(h, "user-1")
	second := testClient(h, "user-1")
	h.register <- first
	h.register <- second
	time.Sleep(50 * time.Millisecond)

	h.SendToUser("user-1", &Event{Type: EventAlertNew, Timestamp: time.Now()})

	for i, client := range []*Client{first, second} {
		select {
		case msg := <-client.send:
			if len(msg) == 0 {
				t.Errorf("connection %d: empty message", i)
			}
		case <-time.After(time.Second):
			t.Errorf("connection %d: timeout waiting for event", i)
		}
	}
}

func TestHub_SendToUnknownUserIsDropped(t *testing.T) {
	h := testHub()
	cancel := startHub(t, h)
	defer cancel()

	// Should not block or panic
	if !h.SendToUser("ghost", &Event{Type: EventAlertNew, Timestamp: time.Now()}) {
		t.Error("queueing for an unknown user should still succeed")
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := testHub()
	cancel := startHub(t, h)
	defer cancel()

	a := testClient(h, "user-1")
	b := testClient(h, "user-2")
	h.register <- a
	h.register <- b
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{Type: EventAlertUpdated, Timestamp: time.Now()})

	for _, client := range []*Client{a, b} {
		select {
		case <-client.send:
		case <-time.After(time.Second):
			t.Errorf("%s: timeout waiting for broadcast", client.userID)
		}
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_SlowClientEvicted(t *testing.T) {
	h := testHub()
	cancel := startHub(t, h)
	defer cancel()

	slow := &Client{hub: h, send: make(chan []byte), userID: "user-1"} // no buffer
	h.register <- slow
	time.Sleep(50 * time.Millisecond)

	h.SendToUser("user-1", &Event{Type: EventAlertNew, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	if n := h.UserConnections("user-1"); n != 0 {
		t.Errorf("Expected slow client evicted, got %d connections", n)
	}
}
