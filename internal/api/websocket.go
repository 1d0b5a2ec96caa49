package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// Message types on the WebSocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels. Clients subscribe by name; WSChannelAll receives every event.
const (
	EventNetworkListChanged      = "network.list_changed"
	EventDeviceListChanged       = "device.list_changed"
	EventManagerChanged          = "manager.changed"
	EventConnectionStateChanged  = "network.connection_state_changed"
	EventDefaultNetworkChanged   = "network.default_changed"
	EventNetworkPropertiesUpdate = "network.properties_updated"
	EventTechnologyError         = "technology.error"

	WSChannelAll = "*"
)

const (
	wsSendBufferSize    = 256
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound WSMessage with its payload left undecoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans engine notifications out to WebSocket clients. It is a
// netstate.Observer: callbacks run on the dispatcher goroutine, snapshot the
// network and queue the frame to each subscribed client without blocking.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

var _ netstate.Observer = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{cfg: cfg, logger: logger, clients: make(map[*WSClient]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", c.subject, "clients", n)
}

// Unregister removes a client and closes its outbound queue.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("websocket client disconnected", "subject", c.subject, "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event frame to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		if !c.enqueue(data) {
			h.logger.Warn("websocket client too slow, event dropped", "subject", c.subject, "channel", channel)
		}
	}
}

func (h *Hub) NetworkListChanged()    { h.Broadcast(EventNetworkListChanged, nil) }
func (h *Hub) DeviceListChanged()     { h.Broadcast(EventDeviceListChanged, nil) }
func (h *Hub) NetworkManagerChanged() { h.Broadcast(EventManagerChanged, nil) }

func (h *Hub) NetworkConnectionStateChanged(n *netstate.NetworkState) {
	h.Broadcast(EventConnectionStateChanged, n.Info())
}

// DefaultNetworkChanged sends a null payload when there is no default network.
func (h *Hub) DefaultNetworkChanged(n *netstate.NetworkState) {
	h.Broadcast(EventDefaultNetworkChanged, n.Info())
}

func (h *Hub) NetworkPropertiesUpdated(n *netstate.NetworkState) {
	h.Broadcast(EventNetworkPropertiesUpdate, n.Info())
}

// WSClient is one WebSocket connection.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string // token subject, empty when auth is disabled

	mu            sync.Mutex
	send          chan []byte
	closed        bool
	subscriptions map[string]struct{}
}

// enqueue queues a frame, reporting false when the client's buffer is full.
// Frames for a closed client are discarded.
func (c *WSClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, all := c.subscriptions[WSChannelAll]
	_, one := c.subscriptions[channel]
	return all || one
}

// handleWebSocket upgrades the request. authMiddleware has already checked
// the token when auth is enabled.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		subject:       subjectFrom(r.Context()),
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(c)

	ka := newKeepalive(s.wsCfg)
	go c.writeLoop(ka)
	go c.readLoop(ka, s.wsCfg.MaxMessageSize)
}

// keepalive holds the ping schedule for a connection.
type keepalive struct {
	ping time.Duration
	pong time.Duration
}

func newKeepalive(cfg config.WebSocketConfig) keepalive {
	ka := keepalive{
		ping: time.Duration(cfg.PingInterval) * time.Second,
		pong: time.Duration(cfg.PongTimeout) * time.Second,
	}
	if ka.ping <= 0 {
		ka.ping = defaultPingInterval
	}
	if ka.pong <= 0 {
		ka.pong = defaultPongTimeout
	}
	return ka
}

// readDeadline is when the connection is considered dead without traffic.
func (ka keepalive) readDeadline() time.Time {
	return time.Now().Add(ka.ping + ka.pong)
}

func (c *WSClient) readLoop(ka keepalive, maxMessageSize int) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if maxMessageSize > 0 {
		c.conn.SetReadLimit(int64(maxMessageSize))
	}
	c.conn.SetReadDeadline(ka.readDeadline()) //nolint:errcheck // a failed deadline surfaces on read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(ka.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "subject", c.subject, "error", err)
			}
			return
		}
		// Application frames count as liveness for clients that ignore pings.
		c.conn.SetReadDeadline(ka.readDeadline()) //nolint:errcheck // a failed deadline surfaces on read
		c.handle(data)
	}
}

func (c *WSClient) writeLoop(ka keepalive) {
	ticker := time.NewTicker(ka.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // connection is closing
				return
			}
			kind, data = websocket.TextMessage, frame
		case <-ticker.C:
			kind = websocket.PingMessage
		}
		c.conn.SetWriteDeadline(time.Now().Add(ka.pong)) //nolint:errcheck // a failed deadline surfaces on write
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// handle dispatches one inbound frame.
func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
			c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
			return
		}
		c.reply(req.ID, WSTypeResponse, c.updateSubscriptions(req.Type, sub.Channels))
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func (c *WSClient) updateSubscriptions(op string, channels []string) map[string]any {
	c.mu.Lock()
	for _, ch := range channels {
		if op == WSTypeSubscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket subscriptions updated", "subject", c.subject, "op", op, "channels", channels)
	return map[string]any{op + "d": channels}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
