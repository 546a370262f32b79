package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain"
	"github.com/satriahrh/keynotes/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Outbound messages buffered per client before it is considered too slow.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	// Clients authenticate with a token, so any origin may connect
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and fans job progress out to the clients following each job.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Clients following each job ID.
	subscriptions map[string]map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to the maps
	mu sync.RWMutex

	validator *MessageValidator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewHub creates a new WebSocket hub. m may be nil.
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		validator:     NewMessageValidator(),
		metrics:       m,
		logger:        logger,
	}
}

// Run starts the hub's main loop and closes every client when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.updateGaugeLocked()
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.clientID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))
		}
	}
}

// removeLocked drops a client and its subscriptions. Callers hold h.mu.
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.updateGaugeLocked()
	}
	h.closeLocked(client)
}

// closeLocked drops a client's subscriptions and closes its send channel once. Callers hold h.mu.
func (h *Hub) closeLocked(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	for jobID := range client.jobs {
		if subscribers, ok := h.subscriptions[jobID]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.subscriptions, jobID)
			}
		}
	}
	close(client.send)
}

func (h *Hub) updateGaugeLocked() {
	if h.metrics != nil {
		h.metrics.ActiveClients.Set(float64(len(h.clients)))
	}
}

// Subscribe makes client receive progress for jobID
func (h *Hub) Subscribe(client *Client, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}

	subscribers, ok := h.subscriptions[jobID]
	if !ok {
		subscribers = make(map[*Client]bool)
		h.subscriptions[jobID] = subscribers
	}
	subscribers[client] = true
	client.jobs[jobID] = true
}

// Unsubscribe stops progress for jobID reaching client
func (h *Hub) Unsubscribe(client *Client, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.jobs, jobID)
	if subscribers, ok := h.subscriptions[jobID]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.subscriptions, jobID)
		}
	}
}

// Publish sends a progress message to every client following its job.
// Clients whose buffer is full are disconnected rather than blocking the publisher.
func (h *Hub) Publish(msg *domain.JobProgressMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal progress message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.subscriptions[msg.JobID] {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		default:
			h.logger.Warn("Dropping slow websocket client",
				zap.String("clientID", client.clientID),
				zap.String("jobID", msg.JobID))
			h.removeLocked(client)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients following jobID
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[jobID])
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Client ID from the authenticated token
	clientID string

	// Jobs this client follows and whether send is closed, guarded by hub.mu
	jobs   map[string]bool
	closed bool

	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, clientID string, logger *zap.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, sendBuffer),
		clientID: clientID,
		jobs:     make(map[string]bool),
		logger:   logger,
	}
}

// HandleWebSocket upgrades an authenticated request and follows jobID when one is given
func HandleWebSocket(hub *Hub, c echo.Context, clientID, jobID string, logger *zap.Logger) error {
	// Follow before the handshake completes so no progress published after it is missed
	client := newClient(hub, nil, clientID, logger)
	if jobID != "" {
		hub.Subscribe(client, jobID)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		hub.mu.Lock()
		hub.closeLocked(client)
		hub.mu.Unlock()
		return err
	}
	client.conn = conn

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processMessage handles control messages from the client
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid websocket message", zap.String("clientID", c.clientID), zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", "Message validation failed", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *SubscriptionMessage:
		if m.Type == MessageTypeSubscribe {
			c.hub.Subscribe(c, m.JobID)
			c.reply(CreateSubscribedMessage(m.JobID, true))
		} else {
			c.hub.Unsubscribe(c, m.JobID)
			c.reply(CreateSubscribedMessage(m.JobID, false))
		}
		c.logger.Debug("Subscription changed",
			zap.String("clientID", c.clientID),
			zap.String("jobID", m.JobID),
			zap.String("action", string(m.Type)))

	case *PingMessage:
		c.reply(CreatePongMessage(m.Data))
	}
}

// reply queues a response for this client, dropping it if the client is gone or too slow
func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Reply dropped, client buffer full", zap.String("clientID", c.clientID))
	}
}
