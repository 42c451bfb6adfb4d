package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/rs/zerolog/log"
)

// Hooks are invoked from the connection goroutines. They must not block for long.
type Hooks struct {
	OnJoin    func(connID string)
	OnLeave   func(connID string)
	OnMessage func(connID string, msg events.Message)
}

// ConnectionManager manages the WebSocket connections of the room
type ConnectionManager struct {
	// Connections keyed by connection ID
	connections map[string]*Connection
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	hooks Hooks

	// Event broadcasting
	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a participant
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// Connection metadata
	RemoteAddr  string
	ConnectedAt time.Time

	// closed is guarded by Manager.mu. Send is closed together with it.
	closed bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to deliver to connections
type BroadcastMessage struct {
	Type   events.Type
	Data   []byte
	ConnID string // Optional: if set, only send to this connection
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// SetHooks registers the room callbacks. Call it before accepting connections.
func (cm *ConnectionManager) SetHooks(hooks Hooks) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.hooks = hooks
}

// Start processes queued deliveries until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and joins it to the room
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (string, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return "", fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	// The join must be queued before any message read from this connection
	if hook := cm.hookSet().OnJoin; hook != nil {
		hook(connection.ID)
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", connection.RemoteAddr).
		Msg("WebSocket connection established")

	return connection.ID, nil
}

func (cm *ConnectionManager) hookSet() Hooks {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.hooks
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and reports the leave once
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	current, exists := cm.connections[conn.ID]
	if !exists || current != conn {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn.ID)
	conn.closed = true
	close(conn.Send)
	onLeave := cm.hooks.OnLeave
	remaining := len(cm.connections)
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Int("total_connections", remaining).
		Msg("connection unregistered")

	if onLeave != nil {
		onLeave(conn.ID)
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		cm.unregisterConnection(c)
		c.Conn.Close()
	}
}

// Broadcast queues msg for every connection in the room
func (cm *ConnectionManager) Broadcast(msg events.Message) {
	cm.enqueue(msg, "")
}

// SendTo queues msg for a single connection
func (cm *ConnectionManager) SendTo(connID string, msg events.Message) {
	cm.enqueue(msg, connID)
}

func (cm *ConnectionManager) enqueue(msg events.Message, connID string) {
	data, err := msg.Bytes()
	if err != nil {
		log.Error().Err(err).Str("event_type", string(msg.Type)).Msg("failed to marshal message for broadcast")
		return
	}

	select {
	case cm.broadcastCh <- BroadcastMessage{Type: msg.Type, Data: data, ConnID: connID}:
	default:
		log.Warn().
			Str("event_type", string(msg.Type)).
			Str("connection_id", connID).
			Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast delivers a queued message. Sends happen under the read
// lock so a connection cannot be unregistered mid-delivery.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	var delivered int
	var slow []*Connection

	cm.mu.RLock()
	if message.ConnID != "" {
		if conn, ok := cm.connections[message.ConnID]; ok {
			delivered++
			if !conn.trySend(message.Data) {
				slow = append(slow, conn)
			}
		}
	} else {
		for _, conn := range cm.connections {
			delivered++
			if !conn.trySend(message.Data) {
				slow = append(slow, conn)
			}
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		// Connection is slow/dead, close it
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Type)).
		Str("target", message.ConnID).
		Int("connections", delivered).
		Msg("message delivered")
}

// ConnectionStats summarizes the open connections
type ConnectionStats struct {
	TotalConnections int      `json:"total_connections"`
	ConnectionIDs    []string `json:"connection_ids"`
	QueuedMessages   int      `json:"queued_messages"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	ids := make([]string, 0, len(cm.connections))
	for id := range cm.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ConnectionIDs:    ids,
		QueuedMessages:   len(cm.broadcastCh),
	}
}

// trySend queues data without blocking. The caller holds Manager.mu.
// A closed connection reports success so it is not closed twice.
func (c *Connection) trySend(data []byte) bool {
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes a participant message and hands it to the room
func (c *Connection) handleClientMessage(raw []byte) {
	msg, err := events.Parse(raw)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("dropping malformed client message")
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("event_type", string(msg.Type)).
		Msg("received client message")

	if hook := c.Manager.hookSet().OnMessage; hook != nil {
		hook(c.ID, msg)
	}
}
