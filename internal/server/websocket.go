package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// ActivityHub fans the router's activity events out to connected
// websocket clients. Slow clients are dropped rather than allowed to
// back-pressure the broadcast loop.
type ActivityHub struct {
	clients    map[*activityClient]bool
	broadcast  chan any
	register   chan *activityClient
	unregister chan *activityClient
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *log.Logger
}

type activityClient struct {
	hub  *ActivityHub
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

// NewActivityHub creates an activity hub; call Run in a goroutine.
func NewActivityHub() *ActivityHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &ActivityHub{
		clients:    make(map[*activityClient]bool),
		broadcast:  make(chan any, 256),
		register:   make(chan *activityClient),
		unregister: make(chan *activityClient),
		ctx:        ctx,
		cancel:     cancel,
		logger:     log.WithPrefix("activity"),
	}
}

// Run processes register, unregister, and broadcast events until Stop.
func (h *ActivityHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "total", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("marshal broadcast", "err", err)
				continue
			}
			// Full lock: the default branch may delete from the map.
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down and closes all client connections.
func (h *ActivityHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		_ = client.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck
	}
	h.clients = make(map[*activityClient]bool)
	h.mu.Unlock()
}

// Broadcast queues a message for all connected clients, dropping it if
// the broadcast channel is full.
func (h *ActivityHub) Broadcast(message any) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// ServeHTTP handles websocket upgrade requests for the activity feed.
func (h *ActivityHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil) //nolint:staticcheck
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &activityClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *activityClient) writePump() {
	defer func() {
		c.detach()
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains incoming frames so disconnects are noticed.
func (c *activityClient) readPump() {
	defer func() {
		c.detach()
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil { //nolint:staticcheck
			return
		}
	}
}

// detach unregisters without blocking once the hub has stopped.
func (c *activityClient) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.ctx.Done():
	}
}
