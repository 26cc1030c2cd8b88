package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/iete-tsec/ascension-registration/ledger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for the REST surface is handled by the router; the
		// capacity feed is public read-only data.
		return true
	},
}

type WebSocketHandler struct {
	hub    *ledger.Hub
	ledger *ledger.Ledger
}

func NewWebSocketHandler(hub *ledger.Hub, ldg *ledger.Ledger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, ledger: ldg}
}

// ServeCapacity upgrades the connection and subscribes it to live
// capacity updates. The current state is pushed immediately so the
// landing page counter renders without waiting for the next change.
func (h *WebSocketHandler) ServeCapacity(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &ledger.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 16),
	}
	h.hub.Register <- client

	snapshot := h.ledger.Snapshot()
	initial, err := json.Marshal(ledger.Message{
		Type: "CAPACITY_UPDATED",
		Payload: ledger.CapacityPayload{
			Count:    snapshot.Count,
			Capacity: snapshot.Capacity,
			Closed:   snapshot.Closed,
		},
	})
	if err == nil {
		client.Send <- initial
	}

	go client.WritePump()
	go client.ReadPump()
}
