// Package gateway bridges the event bus to WebSocket clients and
// routes client commands back into the contest engine.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/arena/events"
)

// Manager owns every WebSocket connection, pooled by room.
type Manager struct {
	rooms map[string]map[*Connection]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   Config
	engine   Engine

	broadcastCh chan events.Event
}

// Connection is one client socket. A connection can be in any number
// of rooms at once; membership changes only through client commands.
type Connection struct {
	ID      string
	UserID  uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *Manager

	ConnectedAt time.Time
	LastPing    time.Time

	mu     sync.Mutex
	rooms  map[string]bool
	closed bool
}

// Config holds WebSocket connection tuning.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // submissions carry source code
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewManager creates a connection manager routing commands to engine.
func NewManager(config Config, engine Engine) *Manager {
	return &Manager{
		rooms: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		engine:      engine,
		broadcastCh: make(chan events.Event, 1000),
	}
}

// Start processes broadcast messages until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case event := <-m.broadcastCh:
			m.handleBroadcast(event)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket. Every
// connection starts in the global room.
func (m *Manager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     m,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		rooms:       make(map[string]bool),
	}

	m.joinRoom(connection, events.GlobalRoom)
	connection.sendSnapshot(r.Context(), events.GlobalRoom)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Msg("WebSocket connection established")

	return nil
}

// joinRoom adds a connection to a room pool.
func (m *Manager) joinRoom(conn *Connection, room string) {
	m.mu.Lock()
	if m.rooms[room] == nil {
		m.rooms[room] = make(map[*Connection]bool)
	}
	m.rooms[room][conn] = true
	size := len(m.rooms[room])
	m.mu.Unlock()

	conn.mu.Lock()
	conn.rooms[room] = true
	conn.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room", room).
		Int("room_connections", size).
		Msg("connection joined room")
}

// leaveRoom removes a connection from one room pool.
func (m *Manager) leaveRoom(conn *Connection, room string) {
	m.mu.Lock()
	if connections, exists := m.rooms[room]; exists {
		delete(connections, conn)
		if len(connections) == 0 {
			delete(m.rooms, room)
		}
	}
	m.mu.Unlock()

	conn.mu.Lock()
	delete(conn.rooms, room)
	conn.mu.Unlock()
}

// unregisterConnection removes a connection from every pool and
// closes its send channel. The close happens under the connection
// mutex, the same one enqueue sends under, so a queued message can
// never race the close onto a closed channel.
func (m *Manager) unregisterConnection(conn *Connection) {
	conn.mu.Lock()
	rooms := make([]string, 0, len(conn.rooms))
	for room := range conn.rooms {
		rooms = append(rooms, room)
	}
	conn.rooms = make(map[string]bool)
	closing := !conn.closed
	conn.closed = true
	if closing {
		close(conn.Send)
	}
	conn.mu.Unlock()

	m.mu.Lock()
	for _, room := range rooms {
		if connections, exists := m.rooms[room]; exists {
			delete(connections, conn)
			if len(connections) == 0 {
				delete(m.rooms, room)
			}
		}
	}
	m.mu.Unlock()

	if closing {
		log.Info().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID.String()).
			Msg("connection unregistered")
	}
}

// Dispatch queues an event for fan-out to its room. Messages are
// dropped when the queue is full.
func (m *Manager) Dispatch(event events.Event) {
	select {
	case m.broadcastCh <- event:
	default:
		log.Warn().Str("room", event.Room).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast fans one event out to its room's connections.
func (m *Manager) handleBroadcast(event events.Event) {
	m.mu.RLock()
	connections, exists := m.rooms[event.Room]
	if !exists {
		m.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.enqueue(data) {
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("connection send buffer full, closing connection")
			m.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("room", event.Room).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns a summary of active connections per room.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	roomCounts := make(map[string]int)
	for room, connections := range m.rooms {
		roomCounts[room] = len(connections)
		total += len(connections)
	}

	return map[string]interface{}{
		"total_connections": total,
		"active_rooms":      len(m.rooms),
		"room_connections":  roomCounts,
	}
}

// enqueue hands data to the write pump without blocking. It reports
// false when the buffer is full; messages for an unregistered
// connection are silently dropped.
func (c *Connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
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

// send delivers a payload to this connection only.
func (c *Connection) send(typ events.Type, payload any) {
	data, err := json.Marshal(events.New("", typ, payload))
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal direct message")
		return
	}
	if !c.enqueue(data) {
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping direct message")
	}
}

// writePump sends queued messages and pings until the connection dies.
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
			c.LastPing = time.Now()
		}
	}
}

// readPump reads client commands until the connection dies.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
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
