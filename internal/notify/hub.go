// Package notify delivers fraud alerts to users over WebSocket and email.
//
// Delivery is fire-and-forget: the scoring pipeline hands an alert to the
// dispatcher and moves on. A user with no open connections and no working
// mailbox simply misses the push; the alert itself is already persisted.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fraudguard/fraudguard/internal/metrics"
)

// normalCloseCodes are WebSocket close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow non-browser clients
		}
		// Allow same-host connections
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// EventType for notification events.
type EventType string

const (
	EventAlertNew     EventType = "alert:new"
	EventAlertUpdated EventType = "alert:updated"
)

// Event is a notification pushed to a user's connections.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Client represents one WebSocket connection for a user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// MaxClients is the maximum number of concurrent WebSocket connections.
const MaxClients = 10000

// message pairs an event with its target user. An empty userID means all users.
type message struct {
	userID  string
	payload []byte
}

// Hub manages WebSocket connections grouped by user. A user may hold any
// number of concurrent connections; an event for that user goes to all of
// them.
type Hub struct {
	byUser     map[string]map[*Client]bool
	deliver    chan message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{} // closed when Run exits; prevents upgrade race
	maxClients int

	// Stats
	totalEvents  atomic.Int64
	totalClients atomic.Int64
}

// NewHub creates a new notification hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		byUser:     make(map[string]map[*Client]bool),
		deliver:    make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
		maxClients: MaxClients,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("notification hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("notification hub shutting down, closing client connections")
			h.mu.Lock()
			for _, conns := range h.byUser {
				for client := range conns {
					close(client.send) // writePump sends CloseMessage on closed channel
				}
			}
			h.byUser = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(0)
			h.logger.Info("notification hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.byUser[client.userID]
			if !ok {
				conns = make(map[*Client]bool)
				h.byUser[client.userID] = conns
			}
			conns[client] = true
			h.totalClients.Add(1)
			n := h.clientCountLocked()
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Info("client connected", "user_id", client.userID, "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			n := h.clientCountLocked()
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Info("client disconnected", "user_id", client.userID, "total", n)

		case msg := <-h.deliver:
			h.totalEvents.Add(1)
			h.mu.RLock()
			var slow []*Client
			if msg.userID == "" {
				for _, conns := range h.byUser {
					slow = append(slow, sendAll(conns, msg.payload)...)
				}
			} else {
				slow = sendAll(h.byUser[msg.userID], msg.payload)
			}
			h.mu.RUnlock()
			// Remove slow clients under write lock
			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					h.removeLocked(client)
					close(client.send)
				}
				n := h.clientCountLocked()
				h.mu.Unlock()
				metrics.ActiveWebSocketClients.Set(float64(n))
			}
		}
	}
}

// sendAll queues payload on every connection in conns and returns the ones
// whose buffers are full.
func sendAll(conns map[*Client]bool, payload []byte) []*Client {
	var slow []*Client
	for client := range conns {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	return slow
}

// removeLocked detaches a client. Caller must hold h.mu.
func (h *Hub) removeLocked(client *Client) {
	conns, ok := h.byUser[client.userID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.byUser, client.userID)
	}
}

// clientCountLocked counts live connections. Caller must hold h.mu.
func (h *Hub) clientCountLocked() int {
	n := 0
	for _, conns := range h.byUser {
		n += len(conns)
	}
	return n
}

// SendToUser queues an event for every open connection of one user.
// Returns false if the delivery queue is full and the event was dropped.
func (h *Hub) SendToUser(userID string, event *Event) bool {
	return h.queue(message{userID: userID, payload: serialize(event)})
}

// Broadcast queues an event for every connected user.
func (h *Hub) Broadcast(event *Event) bool {
	return h.queue(message{payload: serialize(event)})
}

func (h *Hub) queue(msg message) bool {
	select {
	case h.deliver <- msg:
		return true
	default:
		h.logger.Warn("delivery queue full, dropping event")
		return false
	}
}

func serialize(event *Event) []byte {
	data, _ := json.Marshal(event)
	return data
}

// UserConnections returns the number of open connections for a user.
func (h *Hub) UserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"connectedClients": h.clientCountLocked(),
		"connectedUsers":   len(h.byUser),
		"totalEvents":      h.totalEvents.Load(),
		"totalClients":     h.totalClients.Load(),
	}
}

// HandleWebSocket upgrades HTTP to WebSocket. The user identifies itself
// with a user_id query parameter; connections without one are rejected.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Reject upgrades after the hub has stopped to prevent orphaned connections.
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	// Enforce connection limit
	h.mu.RLock()
	n := h.clientCountLocked()
	h.mu.RUnlock()
	if n >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}

	h.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames to keep pongs flowing. Clients have
// nothing to say; the socket is push only.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			break
		}
	}
}

// writePump writes messages to WebSocket.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}
