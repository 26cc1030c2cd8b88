package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is the envelope pushed to capacity subscribers.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// CapacityPayload is the payload of a CAPACITY_UPDATED message.
type CapacityPayload struct {
	Count    int  `json:"count"`
	Capacity int  `json:"capacity"`
	Closed   bool `json:"closed"`
}

// Client is one WebSocket subscriber to capacity updates.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	mu       sync.Mutex
	isClosed bool
}

// Hub fans ledger snapshots out to all connected capacity subscribers.
// Register it as a ledger change listener and run it for the life of
// the server.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan []byte

	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		logger:     logger,
		clients:    make(map[*Client]bool),
	}
}

// Run processes register/unregister/broadcast events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.logger.Debug("capacity subscriber connected", slog.Int("total", len(h.clients)))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				client.closeSend()
				delete(h.clients, client)
				h.logger.Debug("capacity subscriber disconnected", slog.Int("total", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.mu.Lock()
				if client.isClosed {
					client.mu.Unlock()
					continue
				}
				select {
				case client.Send <- message:
				default:
					// Slow subscriber: drop this update, the next one
					// carries the full state anyway.
				}
				client.mu.Unlock()
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastSnapshot pushes the capacity slice of a ledger snapshot to all
// subscribers. Safe to call from any goroutine.
func (h *Hub) BroadcastSnapshot(s Snapshot) {
	msg := Message{
		Type: "CAPACITY_UPDATED",
		Payload: CapacityPayload{
			Count:    s.Count,
			Capacity: s.Capacity,
			Closed:   s.Closed,
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal capacity message", slog.Any("error", err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("capacity broadcast channel full, dropping update")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	if !c.isClosed {
		close(c.Send)
		c.isClosed = true
	}
	c.mu.Unlock()
}

// ReadPump discards inbound frames and keeps the connection's read
// deadline fresh via pong handling. It unregisters the client on exit.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debug("capacity subscriber read error", slog.Any("error", err))
			}
			return
		}
		// Inbound messages are ignored: this is a one-way feed.
	}
}

// WritePump flushes queued messages to the connection and pings on an
// interval so dead peers get detected.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
