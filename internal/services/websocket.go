package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
)

const (
	EventCreated = "event.created"
	EventUpdated = "event.updated"

	MaxLiveConnections = 100
	writeWait          = 5 * time.Second
	sendBuffer         = 16
)

// FeedMessage is what live feed subscribers receive.
type FeedMessage struct {
	Type  string       `json:"type"`
	Event models.Event `json:"event"`
}

// feedClient owns the only writer goroutine for its connection.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketManager manages live feed WebSocket connections
type WebSocketManager struct {
	connections map[*websocket.Conn]*feedClient
	mutex       sync.Mutex
	logger      *logging.Logger
	metrics     *metrics.Collector
}

func NewWebSocketManager(logger *logging.Logger, m *metrics.Collector) *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[*websocket.Conn]*feedClient),
		logger:      logger,
		metrics:     m,
	}
}

// AddConnection registers conn. It returns false when the manager is full.
func (m *WebSocketManager) AddConnection(conn *websocket.Conn) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.connections) >= MaxLiveConnections {
		m.logger.Warnf("Max live feed connections reached (%d)", MaxLiveConnections)
		return false
	}
	c := &feedClient{conn: conn, send: make(chan []byte, sendBuffer)}
	m.connections[conn] = c
	go m.writePump(c)
	m.metrics.LiveFeedClients(len(m.connections))
	m.logger.Infof("Added WebSocket connection (total: %d)", len(m.connections))
	return true
}

// RemoveConnection removes a WebSocket connection
func (m *WebSocketManager) RemoveConnection(conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.drop(conn)
}

// drop must be called with the mutex held.
func (m *WebSocketManager) drop(conn *websocket.Conn) {
	c, ok := m.connections[conn]
	if !ok {
		return
	}
	delete(m.connections, conn)
	close(c.send)
	m.metrics.LiveFeedClients(len(m.connections))
	m.logger.Infof("Removed WebSocket connection (remaining: %d)", len(m.connections))
}

// Count returns the number of connected subscribers.
func (m *WebSocketManager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.connections)
}

// Broadcast queues the event for every subscriber and returns without
// waiting on the network. A subscriber whose queue is full is dropped.
func (m *WebSocketManager) Broadcast(kind string, ev models.Event) {
	message, err := json.Marshal(FeedMessage{Type: kind, Event: ev})
	if err != nil {
		m.logger.Errorf("Failed to encode feed message for event %d: %v", ev.ID, err)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for conn, c := range m.connections {
		select {
		case c.send <- message:
		default:
			m.logger.Warn("Live feed subscriber too slow, dropping")
			m.drop(conn)
		}
	}
}

func (m *WebSocketManager) writePump(c *feedClient) {
	defer c.conn.Close()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			m.logger.Errorf("Failed to send WebSocket message: %v", err)
			m.RemoveConnection(c.conn)
			return
		}
	}
}
