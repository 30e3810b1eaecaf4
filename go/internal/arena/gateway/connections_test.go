package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmehra21/codebid/go/internal/arena/events"
)

func testConnection(m *Manager, buffer int) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		UserID:      uuid.New(),
		Send:        make(chan []byte, buffer),
		Manager:     m,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		rooms:       make(map[string]bool),
	}
}

func TestUnregisterRacingDirectSend(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	conn := testConnection(m, 1)
	m.joinRoom(conn, events.GlobalRoom)

	// unregisterConnection closes Send while the direct-send path is
	// firing; the send must never land on the closed channel.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			conn.send(events.TypeError, events.ErrorPayload{Message: "unknown action"})
		}
	}()
	go func() {
		defer wg.Done()
		m.unregisterConnection(conn)
	}()
	wg.Wait()

	// Sends after unregistration are dropped, not panicking.
	conn.send(events.TypeError, events.ErrorPayload{Message: "unknown action"})

	stats := m.Stats()
	assert.Equal(t, 0, stats["total_connections"])
	assert.Equal(t, 0, stats["active_rooms"])
}

func TestUnregisterIsIdempotent(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	conn := testConnection(m, 4)
	m.joinRoom(conn, events.GlobalRoom)
	m.joinRoom(conn, events.SessionRoom(uuid.New()))

	// Both pumps call this on teardown; the second call must not
	// close Send again.
	m.unregisterConnection(conn)
	m.unregisterConnection(conn)

	_, open := <-conn.Send
	assert.False(t, open, "send channel is closed exactly once")
	assert.Equal(t, 0, m.Stats()["total_connections"])
}
