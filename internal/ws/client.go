package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skychatorg/skyplayer/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

// envelope is the frame format pushed to viewers: a named event with a JSON
// payload.
type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Client is one live websocket connection for a viewer identity. A viewer may
// hold several connections (multiple tabs); each is its own client.
type Client struct {
	id       uuid.UUID
	identity string
	hub      *Hub
	conn     *websocket.Conn
	send     chan envelope
}

func newClient(hub *Hub, identity string, conn *websocket.Conn) *Client {
	return &Client{
		id:       uuid.New(),
		identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan envelope, sendQueueSize),
	}
}

// readPump drains inbound frames. Viewers don't command the server over the
// socket (that goes through HTTP), so payloads are discarded; the pump exists
// to notice disconnects and answer pings.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug().
					Err(err).
					Str("viewer", c.identity).
					Msg("Websocket closed unexpectedly")
			}
			return
		}
	}
}

// writePump serializes outbound events and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) enqueue(env envelope) {
	select {
	case c.send <- env:
	default:
		// Slow consumer; drop the frame rather than stall the broadcast path.
		logger.Log.Warn().
			Str("viewer", c.identity).
			Str("event", env.Event).
			Msg("Dropping event for slow websocket client")
	}
}
