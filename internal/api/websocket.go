package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/showsync/showsync-core/internal/infrastructure/config"
	"github.com/showsync/showsync-core/internal/infrastructure/logging"
)

// Broadcast channels a WebSocket client can subscribe to.
const (
	// ChannelPlaybackPosition carries per-tick playback positions.
	ChannelPlaybackPosition = "playback.position"

	// ChannelPlaybackState carries transport state changes.
	ChannelPlaybackState = "playback.state"

	// ChannelDispatchResult carries per-event dispatch results.
	ChannelDispatchResult = "dispatch.result"
)

// Frame types of the client protocol.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
	framePong        = "pong"
	frameEvent       = "event"
	frameResponse    = "response"
	frameError       = "error"
)

// sendQueueSize is the per-client outbound buffer. A client that falls this
// far behind starts losing frames rather than stalling the show's feeds.
const sendQueueSize = 256

// wsFrame is the single message shape exchanged with clients in both
// directions. Inbound frames use Type + ID + Payload; outbound events carry
// EventType naming the channel.
type wsFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// channelList is the payload of subscribe/unsubscribe frames.
type channelList struct {
	Channels []string `json:"channels"`
}

// Hub tracks connected WebSocket clients and fans broadcast frames out to
// the subscribers of each channel. One hub serves the whole process; the
// player and dispatcher hooks publish through it.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
}

// wsClient is one connected front-of-house display or control surface.
type wsClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is handled by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an empty hub. Run it with Run before serving connections.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

// Broadcast delivers payload to every client subscribed to channel. Slow
// clients are skipped, never waited on; the playback loop must not feel
// WebSocket backpressure.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(wsFrame{
		Type:      frameEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	for _, client := range h.snapshot() {
		if client.subscribed(channel) {
			client.trySend(data)
		}
	}
}

// snapshot copies the client set so broadcasting never holds the hub lock
// while touching per-client state.
func (h *Hub) snapshot() []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// unregister removes the client. Only the goroutine that actually removes
// it from the map closes the send channel, so a concurrent shutdown cannot
// double-close.
func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// handleWebSocket upgrades the HTTP connection. When auth is enabled the
// client must present a single-use ticket from POST /auth/ws-ticket; browser
// WebSocket APIs cannot set an Authorization header.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.secCfg.Auth.Enabled {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		if !s.tickets.consume(ticket) {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, sendQueueSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.register(client)

	go client.writeLoop(s.wsCfg)
	go client.readLoop(s.wsCfg)
}

// readLoop consumes client frames until the connection drops, renewing the
// read deadline on every frame and every pong.
func (c *wsClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck // best-effort setup
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck // best-effort renewal
		c.handleFrame(message)
	}
}

// writeLoop drains the send queue and keeps the connection alive with
// protocol pings. It owns all writes on the connection.
func (c *wsClient) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught below
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // ping error caught below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleFrame(data []byte) {
	var msg wsFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case frameSubscribe:
		if channels, ok := c.decodeChannels(msg); ok {
			c.updateSubscriptions(channels, true)
			c.respond(msg.ID, frameResponse, map[string]any{"subscribed": channels})
		}
	case frameUnsubscribe:
		if channels, ok := c.decodeChannels(msg); ok {
			c.updateSubscriptions(channels, false)
			c.respond(msg.ID, frameResponse, map[string]any{"unsubscribed": channels})
		}
	case framePing:
		c.respond(msg.ID, framePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeChannels extracts the channel list from a subscribe/unsubscribe
// frame, reporting a protocol error to the client on failure.
func (c *wsClient) decodeChannels(msg wsFrame) ([]string, bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}
	var list channelList
	if err := json.Unmarshal(raw, &list); err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}
	return list.Channels, true
}

func (c *wsClient) updateSubscriptions(channels []string, add bool) {
	c.mu.Lock()
	for _, ch := range channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend queues a frame without blocking. A full queue drops the frame; a
// channel closed by a concurrent unregister is absorbed via recover.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // absorb send-on-closed-channel during shutdown
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) respond(id, msgType string, payload any) {
	data, err := json.Marshal(wsFrame{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *wsClient) sendError(id, message string) {
	c.respond(id, frameError, map[string]string{"message": message})
}
