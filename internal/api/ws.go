package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pulseboard/internal/board"
	"pulseboard/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	watchInterval  = time.Second
	sendBufferSize = 4
	maxMessageSize = 512
)

// Hub pushes newly published leaderboard snapshots to websocket clients.
type Hub struct {
	publisher *board.Publisher
	logger    *logger.Logger
	upgrader  websocket.Upgrader

	// Keepalive periods, overridable in tests. pingPeriod must be
	// shorter than readWait so a live client always refreshes its
	// deadline in time.
	readWait   time.Duration
	pingPeriod time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan interface{}
}

// NewHub creates a websocket hub.
func NewHub(publisher *board.Publisher, log *logger.Logger) *Hub {
	return &Hub{
		publisher: publisher,
		logger:    log.WithField("module", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is public read-only data
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readWait:   pongWait,
		pingPeriod: (pongWait * 9) / 10,
		clients:    make(map[*client]struct{}),
	}
}

// Watch broadcasts every new snapshot until ctx is cancelled. The
// publisher has no notification channel, so the hub polls the tick
// counter; one second is far below the collect interval.
func (h *Hub) Watch(ctx context.Context) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	var lastTick uint64
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			snap := h.publisher.Current()
			if snap == nil || snap.Tick == lastTick {
				continue
			}
			lastTick = snap.Tick
			h.broadcast(snap)
		}
	}
}

// ServeWS upgrades the connection and streams snapshots.
// GET /ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan interface{}, sendBufferSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.WithField("clients", n).Debug("Websocket client connected")

	// Send the current snapshot right away so clients don't wait a tick
	if snap := h.publisher.Current(); snap != nil {
		select {
		case c.send <- snap:
		default:
		}
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop drains client frames so closes are noticed, and enforces the
// ping/pong keepalive: the read deadline only moves forward when the
// client answers a ping, so a dead peer is dropped after readWait.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(h.readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.readWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) broadcast(msg interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow consumer; drop it rather than stall the broadcast
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
