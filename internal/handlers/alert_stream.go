package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/services"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 50 * time.Second
	streamBuffer     = 16
)

// streamClient is one websocket subscriber. sectorID filters events when set.
type streamClient struct {
	conn     *websocket.Conn
	send     chan []byte
	sectorID string
	once     sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.send) })
}

// AlertStreamHandler pushes MEL alert transitions to websocket subscribers.
// It implements services.AlertNotifier.
type AlertStreamHandler struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewAlertStreamHandler creates a new alert stream handler
func NewAlertStreamHandler(logger *zap.Logger) *AlertStreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertStreamHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Dashboards are served from other origins
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// SetupRoutes configures websocket routes
func (h *AlertStreamHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/mel/alerts", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and streams alert events.
// The optional sector_id query parameter restricts the stream to one sector.
func (h *AlertStreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade alert stream", zap.Error(err))
		return
	}

	client := &streamClient{
		conn:     conn,
		send:     make(chan []byte, streamBuffer),
		sectorID: r.URL.Query().Get("sector_id"),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("alert stream subscriber connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("sector_id", client.sectorID))

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop discards client messages and detects disconnects
func (h *AlertStreamHandler) readLoop(c *streamClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("alert stream read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *AlertStreamHandler) writeLoop(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *AlertStreamHandler) remove(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
		h.logger.Info("alert stream subscriber disconnected")
	}
}

// Notify implements services.AlertNotifier. Subscribers whose buffer is
// full are disconnected rather than slowing the reconciler.
func (h *AlertStreamHandler) Notify(_ context.Context, event services.AlertEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode alert event", zap.Error(err))
		return
	}

	var slow []*streamClient
	h.mu.RLock()
	for c := range h.clients {
		if c.sectorID != "" && c.sectorID != event.Alert.SectorID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow alert stream subscriber")
		h.remove(c)
	}
}

// ClientCount returns the number of connected subscribers
func (h *AlertStreamHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *AlertStreamHandler) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}
