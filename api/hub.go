package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	iface "VpsClient/interface"
	"VpsClient/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// Hub broadcasts every localization result to the connected websocket clients.
// Slow clients drop messages rather than stall the session.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *zap.Logger
}

var _ iface.ResultSink = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     logger.Named("hub"),
	}
}

func (h *Hub) Apply(result iface.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		h.log.Error("marshal result", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("client too slow, result dropped", zap.String("attempt", result.AttemptID))
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.close()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		h.unregister(c)
	}
}

// Serve upgrades the request and streams results until the client goes away.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 升级失败，不要再写 JSON
		return
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(cl)
	h.log.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(cl)

	// results flow one way; reads only detect disconnects
	conn.SetReadLimit(1024)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Debug("client disconnected", zap.Error(err))
			h.unregister(cl)
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("write failed", zap.Error(err))
			h.unregister(c)
			return
		}
	}
}
