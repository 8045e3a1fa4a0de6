// Package monitor streams report events to WebSocket clients, so a remote
// terminal can watch a headless device. It is a Reporter: plug it into
// the client's reporter fan-out and every echo line is broadcast as JSON.
//
// Each WebSocket client gets its own buffered queue and write pump.
// Broadcasting never blocks; a client that falls behind loses events.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/report"
)

const (
	// EventsPath is where clients upgrade to WebSocket
	EventsPath = "/events"

	// DefaultBacklog is how many recent events a new client receives
	DefaultBacklog = 32

	clientQueue  = 64
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Hub broadcasts events to connected WebSocket clients
type Hub struct {
	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	mu      sync.RWMutex
	clients map[string]*wsClient
	backlog []report.Event
	limit   int
}

// New creates a hub that replays up to backlog recent events to new
// clients. backlog <= 0 uses DefaultBacklog.
func New(backlog int) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	h := &Hub{
		clients: make(map[string]*wsClient),
		limit:   backlog,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	return h
}

// Handler returns the HTTP handler serving the hub
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(EventsPath, h.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "ok %d\n", h.Clients())
	})
	return mux
}

// Start listens on addr and serves in the background.
func (h *Hub) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for monitor: %w", err)
	}
	h.listener = ln
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Monitor server stopped", zap.Error(err))
		}
	}()

	logging.Info("Monitor listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil before Start
func (h *Hub) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Shutdown stops the HTTP server and disconnects all clients
func (h *Hub) Shutdown(ctx context.Context) error {
	var err error
	if h.server != nil {
		err = h.server.Shutdown(ctx)
	}

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*wsClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return err
}

// Report broadcasts e to every client and keeps it in the backlog.
func (h *Hub) Report(e report.Event) {
	h.mu.Lock()
	h.backlog = append(h.backlog, e)
	if len(h.backlog) > h.limit {
		h.backlog = h.backlog[len(h.backlog)-h.limit:]
	}
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.send(e)
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Monitor upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		id:    uuid.NewString(),
		conn:  conn,
		queue: make(chan report.Event, clientQueue),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	backlog := append([]report.Event(nil), h.backlog...)
	h.mu.Unlock()

	logging.LogConnection(r.RemoteAddr, "monitor_connected")

	for _, e := range backlog {
		c.send(e)
	}

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	logging.LogConnection(r.RemoteAddr, "monitor_disconnected")
}

// wsClient is one connected monitor
type wsClient struct {
	id    string
	conn  *websocket.Conn
	queue chan report.Event
	done  chan struct{}
	once  sync.Once
}

func (c *wsClient) send(e report.Event) {
	select {
	case c.queue <- e:
	case <-c.done:
	default:
		logging.Debug("Monitor client lagging, event dropped", zap.String("client", c.id))
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump discards inbound messages and detects disconnects
func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Monitor read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

// writePump sends queued events as JSON and keeps the connection alive
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case e := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
