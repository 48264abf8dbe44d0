package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/oddsalign/internal/metrics"
	"github.com/joshuakim/oddsalign/internal/models"
)

// Message types
const (
	MessageTypeRecordsUpdate = "records_update"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypeError         = "error"
	MessageTypeStatus        = "status"
	MessageTypePong          = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type      string              `json:"type"`
	League    string              `json:"league,omitempty"`
	Result    *models.BuildResult `json:"result,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Error     string              `json:"error,omitempty"`
	Status    string              `json:"status,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Client subscriptions by league
	subscriptions map[models.League]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe access
	mu sync.RWMutex

	// Metrics
	metrics *metrics.Metrics

	log *logrus.Logger

	// Configuration
	maxConnections int
}

// NewHub creates a new Hub
func NewHub(m *metrics.Metrics, log *logrus.Logger, maxConnections int) *Hub {
	if maxConnections <= 0 {
		maxConnections = 1000
	}
	return &Hub{
		clients:        make(map[*Client]bool),
		subscriptions:  make(map[models.League]map[*Client]bool),
		register:       make(chan *Client, 256),
		unregister:     make(chan *Client, 256),
		metrics:        m,
		log:            log,
		maxConnections: maxConnections,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Check connection limit
	if len(h.clients) >= h.maxConnections {
		h.log.WithField("max", h.maxConnections).Warn("websocket connection rejected, at capacity")
		errMsg := Message{
			Type:      MessageTypeError,
			Error:     "Server at capacity, please try again later",
			Timestamp: time.Now(),
		}
		data, _ := json.Marshal(errMsg)
		client.send <- data
		close(client.send)
		return
	}

	h.clients[client] = true
	h.metrics.RecordConnection()
	h.log.WithField("total", len(h.clients)).Debug("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)

		for league := range h.subscriptions {
			delete(h.subscriptions[league], client)
			h.metrics.UpdateSubscriberCount(string(league), int64(len(h.subscriptions[league])))
		}

		close(client.send)
		h.metrics.RecordDisconnection()
		h.log.WithField("total", len(h.clients)).Debug("websocket client disconnected")
	}
}

// Subscribe adds a client to a league's subscription list
func (h *Hub) Subscribe(client *Client, league models.League) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscriptions[league] == nil {
		h.subscriptions[league] = make(map[*Client]bool)
	}
	h.subscriptions[league][client] = true
	h.metrics.UpdateSubscriberCount(string(league), int64(len(h.subscriptions[league])))
	h.log.WithFields(logrus.Fields{
		"league":      league,
		"subscribers": len(h.subscriptions[league]),
	}).Debug("websocket client subscribed")
}

// Unsubscribe removes a client from a league's subscription list
func (h *Hub) Unsubscribe(client *Client, league models.League) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscriptions[league] != nil {
		delete(h.subscriptions[league], client)
		h.metrics.UpdateSubscriberCount(string(league), int64(len(h.subscriptions[league])))
	}
}

// Broadcast sends a build result to all clients subscribed to a league
func (h *Hub) Broadcast(league models.League, result *models.BuildResult) {
	message := Message{
		Type:      MessageTypeRecordsUpdate,
		League:    string(league),
		Result:    result,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal broadcast message")
		return
	}

	h.mu.RLock()
	subscribers := h.subscriptions[league]
	clientCount := len(subscribers)
	h.mu.RUnlock()

	if clientCount == 0 {
		return
	}

	h.metrics.RecordBroadcast(len(data), clientCount)

	var failedClients []*Client

	h.mu.RLock()
	for client := range subscribers {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full - mark for removal
			failedClients = append(failedClients, client)
			h.metrics.RecordMessageFailed()
		}
	}
	h.mu.RUnlock()

	for _, client := range failedClients {
		h.log.Warn("websocket removing slow client")
		h.unregister <- client
	}

	h.log.WithFields(logrus.Fields{
		"league":  league,
		"clients": clientCount - len(failedClients),
		"bytes":   len(data),
	}).Debug("websocket broadcast sent")
}

// BroadcastStatus sends a status message to all clients
func (h *Hub) BroadcastStatus(status string) {
	message := Message{
		Type:      MessageTypeStatus,
		Status:    status,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Skip slow clients for status messages
		}
	}
}

// GetStats returns hub statistics
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	leagueSubs := make(map[string]int)
	for league, clients := range h.subscriptions {
		leagueSubs[string(league)] = len(clients)
	}

	return map[string]interface{}{
		"total_clients":   len(h.clients),
		"max_connections": h.maxConnections,
		"subscriptions":   leagueSubs,
	}
}

// CanAccept returns whether the hub can accept new connections
func (h *Hub) CanAccept() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) < h.maxConnections
}

// ClientCount returns the current number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
