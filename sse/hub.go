package sse

import (
	"path/filepath"
	"sync"

	"github.com/Anyuluo996/BotShepherd/logger"
)

// Client is one connected dashboard subscriber.
type Client struct {
	id     string
	events chan []byte
}

// NewClient creates a subscriber. The event channel is buffered; a
// client that stops reading loses events rather than stalling the hub.
func NewClient(id string) *Client {
	return &Client{
		id:     id,
		events: make(chan []byte, 256),
	}
}

// ID returns the client's identifier, namespaced like "dashboard:<uuid>".
func (c *Client) ID() string {
	return c.id
}

// Events returns the channel the client reads its events from.
func (c *Client) Events() <-chan []byte {
	return c.events
}

// Send queues data for the client. Returns false when the buffer is
// full, which means the client is reading too slowly.
func (c *Client) Send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		logger.Warn("[SSE] Client channel full, dropping event", map[string]interface{}{
			"client_id": c.id,
		})
		return false
	}
}

// Close closes the client's event channel.
func (c *Client) Close() {
	close(c.events)
}

// Hub tracks subscribers and fans events out to them. Register,
// Unregister and BroadcastToPattern are safe from any goroutine; the
// hub serializes them through its Run loop.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
}

// envelope pairs event data with the pattern selecting its receivers.
type envelope struct {
	pattern string
	data    []byte
}

// NewHub creates an idle hub. Call Run to start delivery.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		done:       make(chan struct{}),
	}
}

// Run delivers events until Stop is called. Run in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE] Client registered", map[string]interface{}{
				"client_id":   client.id,
				"subscribers": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE] Client unregistered", map[string]interface{}{
				"client_id":   client.id,
				"subscribers": total,
			})

		case env := <-h.broadcast:
			h.deliver(env.pattern, env.data)
		}
	}
}

// Stop shuts the hub down, disconnecting every subscriber. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
}

// Register adds a subscriber to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a subscriber and closes its channel.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToPattern queues data for every client whose ID matches the
// glob pattern, "dashboard:*" for all dashboards.
func (h *Hub) BroadcastToPattern(pattern string, data []byte) {
	h.broadcast <- envelope{pattern: pattern, data: data}
}

// deliver runs on the hub goroutine and fans one event out.
func (h *Hub) deliver(pattern string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		matched, err := filepath.Match(pattern, id)
		if err != nil {
			logger.Error("[SSE] Bad broadcast pattern", map[string]interface{}{
				"pattern": pattern,
				"error":   err.Error(),
			})
			return
		}
		if matched {
			client.Send(data)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ Broadcaster = (*Hub)(nil)
