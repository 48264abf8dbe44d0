package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joshuakim/oddsalign/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	// Send channel buffer size
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, you should validate the origin properly
		// For development, allow all origins
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Subscriptions this client has
	leagues map[models.League]bool
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type   string `json:"type"`
	League string `json:"league,omitempty"`
}

// NewClient creates a new client and starts its goroutines
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		leagues: make(map[models.League]bool),
	}
}

// ServeWs handles WebSocket requests from the peer
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	// Check if we can accept more connections
	if !hub.CanAccept() {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := NewClient(hub, conn)
	hub.register <- client

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the WebSocket connection to the hub
// It runs in its own goroutine and handles:
// - Reading client messages (subscribe/unsubscribe)
// - Ping/pong for connection health
// - Detecting disconnection
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("websocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
// It runs in its own goroutine and handles:
// - Writing messages to client
// - Sending periodic pings
// - Respecting write deadlines
func (c *Client) writePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Batch pending messages for efficiency
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// handleMessage processes incoming client messages
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg.League)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg.League)
	case "ping":
		c.sendPong()
	default:
		c.hub.log.WithField("type", msg.Type).Debug("websocket unknown message type")
	}
}

func (c *Client) handleSubscribe(leagueStr string) {
	league, err := models.ParseLeague(leagueStr)
	if err != nil {
		c.sendError("Invalid league: use 'nba', 'nfl' or 'mlb'")
		return
	}

	// Unsubscribe from previous leagues (one league at a time for simplicity)
	for l := range c.leagues {
		c.hub.Unsubscribe(c, l)
	}
	c.leagues = make(map[models.League]bool)

	// Subscribe to new league
	c.leagues[league] = true
	c.hub.Subscribe(c, league)

	// Send confirmation
	c.sendStatus("subscribed to " + leagueStr)
}

func (c *Client) handleUnsubscribe(leagueStr string) {
	league, err := models.ParseLeague(leagueStr)
	if err != nil {
		return
	}
	if c.leagues[league] {
		delete(c.leagues, league)
		c.hub.Unsubscribe(c, league)
		c.sendStatus("unsubscribed from " + leagueStr)
	}
}

func (c *Client) sendError(errMsg string) {
	msg := Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
		// Buffer full, skip
	}
}

func (c *Client) sendStatus(status string) {
	msg := Message{
		Type:      MessageTypeStatus,
		Status:    status,
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendPong() {
	msg := Message{
		Type:      MessageTypePong,
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}
