// Package stream pushes forecasts to websocket subscribers.
package stream

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"FinFit/internal/domain/models"
	drepo "FinFit/internal/domain/repository"
	xlogger "FinFit/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Option configures a Hub.
type Option func(*Hub)

// WithPingInterval sets how often idle connections are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) { h.pingInterval = d }
}

// WithBufferSize sets the per-client outbound queue length.
func WithBufferSize(n int) Option {
	return func(h *Hub) { h.bufSize = n }
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// Hub implements ForecastStream over websockets. Clients may pass
// ?symbol=A,B to receive only those companies.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	bufSize      int
	l            *xlogger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	dropped atomic.Int64
}

var _ drepo.ForecastStream = (*Hub)(nil)

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	symbols map[string]bool
}

func (c *client) wants(symbol string) bool {
	return len(c.symbols) == 0 || c.symbols[symbol]
}

// NewHub creates an empty hub.
func NewHub(l *xlogger.Logger, opts ...Option) *Hub {
	if l == nil {
		l = xlogger.Nop()
	}
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		pingInterval: 30 * time.Second,
		writeWait:    10 * time.Second,
		bufSize:      256,
		l:            l,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/forecasts", h.Serve)
}

// Serve upgrades the request and blocks until the client goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil // upgrader already wrote the error response
	}

	cl := &client{conn: conn, send: make(chan []byte, h.bufSize), symbols: parseSymbols(c.QueryParam("symbol"))}
	h.register(cl)
	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// Broadcast queues every forecast for each interested client. A client
// whose queue is full misses the message.
func (h *Hub) Broadcast(forecasts []*models.Forecast) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	for _, f := range forecasts {
		if f == nil {
			continue
		}
		b, err := json.Marshal(f)
		if err != nil {
			h.l.Warn("encode forecast", xlogger.String("symbol", f.Symbol), xlogger.Error(err))
			continue
		}
		for cl := range h.clients {
			if !cl.wants(f.Symbol) {
				continue
			}
			select {
			case cl.send <- b:
			default:
				// drop on backpressure
				h.dropped.Add(1)
			}
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		_ = cl.conn.Close()
	}
	return nil
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.l.Debug("stream client connected", xlogger.Int("clients", n))
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.l.Debug("stream client disconnected", xlogger.Int("clients", n))
}

// readLoop discards inbound frames; it exists to notice disconnects and
// to process pong and close control frames.
func (h *Hub) readLoop(cl *client) {
	defer func() {
		h.unregister(cl)
		_ = cl.conn.Close()
	}()
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case b, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func parseSymbols(q string) map[string]bool {
	if q == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, s := range strings.Split(q, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out[s] = true
		}
	}
	return out
}
