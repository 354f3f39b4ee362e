package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/irbridge"
	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/logging"
)

// Message types on the WebSocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeCommand     = "command"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// ChannelStateChanged carries an entity snapshot after every state change.
const ChannelStateChanged = "entity.state_changed"

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`

	// Entities narrows state events to these IDs. Empty means every
	// entity. On unsubscribe the listed IDs are removed from the filter.
	Entities []string `json:"entities,omitempty"`
}

// WSCommandPayload runs one action, the same as the REST action routes.
type WSCommandPayload struct {
	EntityID    string   `json:"entity_id"`
	Action      string   `json:"action"`
	Commands    []string `json:"commands,omitempty"`
	RepeatCount int      `json:"repeat_count,omitempty"`
}

// executor runs a request and returns the entity's state afterwards.
type executor func(ctx context.Context, req irbridge.Request) (entity.Snapshot, error)

// Hub fans state events out to connected clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	exec    executor
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected socket.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
	entities map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub. exec may be nil, in which case command messages
// are refused.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, exec executor) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		exec:    exec,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. Only the caller that removes it from the
// map closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
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

// BroadcastState sends snap to every client subscribed to state changes
// whose entity filter admits it.
func (h *Hub) BroadcastState(snap entity.Snapshot) {
	data, err := encodeMessage(WSTypeEvent, "", ChannelStateChanged, snap)
	if err != nil {
		h.logger.Error("failed to marshal state event", "error", err)
		return
	}

	// Hub lock is released before client locks are taken.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.wants(ChannelStateChanged, snap.ID) {
			client.trySend(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("state event sent", "entity_id", snap.ID, "recipients", sent)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the connection. Clients receive no events until
// they subscribe.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
		entities: make(map[string]struct{}),
	}

	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // best effort
	c.conn.SetReadDeadline(time.Now().Add(idle))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idle))
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
		// Any client frame counts as liveness.
		//nolint:errcheck // best effort
		c.conn.SetReadDeadline(time.Now().Add(idle))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", ErrCodeBadRequest, "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg, true)
	case WSTypeUnsubscribe:
		c.handleSubscribe(msg, false)
	case WSTypeCommand:
		c.handleCommand(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, ErrCodeBadRequest, "unknown message type: "+msg.Type)
	}
}

// handleSubscribe adds (or removes) channels and entity filters.
func (c *WSClient) handleSubscribe(msg WSMessage, add bool) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		c.sendError(msg.ID, ErrCodeBadRequest, "invalid "+msg.Type+" payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if add {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	for _, id := range sub.Entities {
		if add {
			c.entities[id] = struct{}{}
		} else {
			delete(c.entities, id)
		}
	}
	c.mu.Unlock()

	key := "subscribed"
	if !add {
		key = "unsubscribed"
	}
	c.hub.logger.Debug("websocket "+key, "channels", sub.Channels, "entities", sub.Entities)
	c.reply(msg.ID, WSTypeResponse, map[string]any{
		key:        sub.Channels,
		"entities": sub.Entities,
	})
}

// handleCommand runs an action and answers with the entity snapshot or
// an error carrying the bridge's error code.
func (c *WSClient) handleCommand(msg WSMessage) {
	if c.hub.exec == nil {
		c.sendError(msg.ID, ErrCodeUnavailable, "commands are not accepted on this socket")
		return
	}

	var cmd WSCommandPayload
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		c.sendError(msg.ID, ErrCodeBadRequest, "invalid command payload")
		return
	}
	if cmd.EntityID == "" || cmd.Action == "" {
		c.sendError(msg.ID, ErrCodeValidation, "entity_id and action are required")
		return
	}

	req := irbridge.Request{
		EntityID:    cmd.EntityID,
		Command:     cmd.Action,
		Commands:    cmd.Commands,
		RepeatCount: cmd.RepeatCount,
		Source:      "websocket",
	}
	ctx, cancel := context.WithTimeout(context.Background(), req.Timeout())
	defer cancel()

	snap, err := c.hub.exec(ctx, req)
	if err != nil {
		c.sendError(msg.ID, irbridge.ErrorCode(err), err.Error())
		return
	}
	c.reply(msg.ID, WSTypeResponse, snap)
}

// trySend drops the frame if the client is slow or already gone.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()

	select {
	case c.send <- data:
	default:
	}
}

// wants reports whether an event on channel about entityID is for c.
func (c *WSClient) wants(channel, entityID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.channels[channel]; !ok {
		return false
	}
	if len(c.entities) == 0 {
		return true
	}
	_, ok := c.entities[entityID]
	return ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := encodeMessage(msgType, id, "", payload)
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket reply", "error", err)
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, code, message string) {
	c.reply(id, WSTypeError, ErrorDetail{Code: code, Message: message})
}

func encodeMessage(msgType, id, eventType string, payload any) ([]byte, error) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}
