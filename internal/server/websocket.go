package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"clipd/pkg/types"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback only.
		return true
	},
}

// historyMessage is pushed to every client whenever the history mutates, so
// consumers render live state without polling.
type historyMessage struct {
	Type  string        `json:"type"`
	Clips []*types.Clip `json:"clips"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newHub(logger *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("websocket client connected", "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.logger.Debug("websocket client disconnected", "total", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// broadcastHistory pushes a fresh newest-first snapshot to all clients. The
// hub loop and its feeders share ctx, so a send never outlives the receiver.
func (h *Hub) broadcastHistory(ctx context.Context, clips []*types.Clip) {
	message, err := json.Marshal(historyMessage{Type: "history_change", Clips: clips})
	if err != nil {
		h.logger.Error("failed to marshal history message", "error", err)
		return
	}
	select {
	case h.broadcast <- message:
	case <-ctx.Done():
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards client frames and unregisters on close.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// serveWs upgrades a request and attaches the client to the hub.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// watchHistory feeds service invalidations into the hub until ctx ends.
func (s *Server) watchHistory(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	events, cancel := s.svc.Watch()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			clips, err := s.svc.History(ctx, snapshotLimit, 0)
			if err != nil {
				s.logger.Warn("failed to refresh history for broadcast", "error", err)
				continue
			}
			s.hub.broadcastHistory(ctx, clips)
		}
	}
}
