// Package ws fans playback events out to connected viewers over websockets.
package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skychatorg/skyplayer/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Viewers connect from arbitrary origins; authorization happens at the
	// command layer, not the socket.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks every live viewer connection. It implements the playback
// Broadcaster and Presence capabilities.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	closed  bool

	// OnDisconnect, when set, runs after a viewer's last connection drops.
	OnDisconnect func(identity string)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Serve upgrades an HTTP request to a websocket for the given viewer identity
// and runs its pumps. It returns once the connection is registered.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, identity string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := newClient(h, identity, conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	if h.clients[identity] == nil {
		h.clients[identity] = make(map[*Client]struct{})
	}
	h.clients[identity][client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	logger.Log.Debug().
		Str("viewer", identity).
		Msg("Viewer connected")

	return nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	last := false
	if set, ok := h.clients[c.identity]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.identity)
			last = true
		}
	}
	onDisconnect := h.OnDisconnect
	h.mu.Unlock()

	if last {
		logger.Log.Debug().
			Str("viewer", c.identity).
			Msg("Viewer disconnected")
		if onDisconnect != nil {
			onDisconnect(c.identity)
		}
	}
}

// Connected reports whether the identity has at least one live connection.
func (h *Hub) Connected(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identity]) > 0
}

// ToViewer delivers an event to every connection of one viewer.
func (h *Hub) ToViewer(identity, event string, payload any) {
	env := envelope{Event: event, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[identity] {
		client.enqueue(env)
	}
}

// ToViewers delivers an event to every connection of each listed viewer.
func (h *Hub) ToViewers(identities []string, event string, payload any) {
	env := envelope{Event: event, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, identity := range identities {
		for client := range h.clients[identity] {
			client.enqueue(env)
		}
	}
}

// ToAll delivers an event to every connected party.
func (h *Hub) ToAll(event string, payload any) {
	env := envelope{Event: event, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for client := range set {
			client.enqueue(env)
		}
	}
}

// Stop closes every connection and refuses new ones.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.clients {
		for client := range set {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
}
