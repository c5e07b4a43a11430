// Package ws pushes notifications and auth changes to the owner's open tabs.
package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Zachkp/folio/internal/auth"
	"github.com/Zachkp/folio/internal/notify"
)

const (
	OpNotification = "notification"
	OpAuth         = "auth"
)

// Event is the frame written to clients.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"data"`
	Seq  int64  `json:"seq"`
}

// Hub tracks connected clients per user. It implements notify.Sink.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	seq atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns client registration until Shutdown. Start it with go hub.Run().
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case <-h.done:
			h.mu.Lock()
			for userID, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]bool)
	}
	h.clients[c.userID][c] = true
	log.Printf("[ws] client connected: user=%s (connections: %d)", c.userID, len(h.clients[c.userID]))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	log.Printf("[ws] client disconnected: user=%s (remaining: %d)", c.userID, len(set))
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Notify broadcasts a notification to every connected tab.
func (h *Hub) Notify(n notify.Notification) {
	h.BroadcastToAll(Event{Op: OpNotification, Data: n})
}

// AuthEvent forwards an auth change to the user's tabs.
func (h *Hub) AuthEvent(e auth.Event) {
	h.BroadcastToUser(e.UserID, Event{Op: OpAuth, Data: e})
}

func (h *Hub) BroadcastToAll(event Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			h.deliver(c, data)
		}
	}
}

func (h *Hub) BroadcastToUser(userID string, event Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		h.deliver(c, data)
	}
}

func (h *Hub) encode(event Event) ([]byte, bool) {
	event.Seq = h.seq.Add(1)
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] marshal %s event: %v", event.Op, err)
		return nil, false
	}
	return data, true
}

// deliver must be called with h.mu held for reading.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("[ws] send buffer full for user %s, dropping connection", c.userID)
		go h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
