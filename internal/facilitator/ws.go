package facilitator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/bus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboard is served from a different origin in development.
		return true
	},
}

// wsClient is one subscriber of the live event feed.
type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	clientID string
}

// Hub maintains the set of connected feed subscribers and fans accepted
// events out to them. Subscribers are receive-only; inbound frames are
// drained and discarded.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	logger     *logrus.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub subscribed to the feed event types on the bus, so
// every accepted event reaches connected dashboards.
func NewHub(eventBus *bus.EventBus, logger *logrus.Logger) *Hub {
	hub := &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		logger:     logger,
	}
	eventBus.SubscribeAll(hub.handleBusEvent)
	return hub
}

// Run processes registration, unregistration and broadcasting until the
// process exits. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			// Eviction mutates the client map, so stalled clients are
			// collected under the read lock and removed under the write
			// lock.
			var stalled []*wsClient
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()

			if len(stalled) > 0 {
				h.mu.Lock()
				for _, client := range stalled {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleBusEvent serializes a bus event and queues it for broadcast. A full
// broadcast channel drops the event rather than blocking the bus.
func (h *Hub) handleBusEvent(event bus.Event) {
	message, err := json.Marshal(map[string]interface{}{
		"type":    event.Type,
		"payload": event.Payload,
	})
	if err != nil {
		h.logger.Errorf("Failed to serialize event %s: %v", event.Type, err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warnf("Broadcast queue full, dropping event %s", event.Type)
	}
}

// HandleWebSocket upgrades the connection and registers the subscriber.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		clientID: fmt.Sprintf("client-%d", time.Now().UnixNano()),
	}
	h.register <- client
	h.logger.Infof("New feed subscriber connected: %s", client.clientID)

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames to keep pong handling alive; the feed is
// one-way, so frame contents are ignored.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
		c.hub.logger.Infof("Feed subscriber disconnected: %s", c.clientID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps queued messages to the connection and keeps it alive with
// periodic pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
