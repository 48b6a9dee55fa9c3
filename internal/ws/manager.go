package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"mill-alert-service/internal/logging"
)

const maxConnsPerUser = 10

// Manager tracks live WebSocket connections per user so in-app notifications
// can be pushed to open dashboard sessions.
type Manager struct {
	connections map[int64]map[*websocket.Conn]bool // userID -> set of connections
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		connections: make(map[int64]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers a connection for a user, capped per user.
func (m *Manager) AddConnection(userID int64, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.connections[userID]; !exists {
		m.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(m.connections[userID]) >= maxConnsPerUser {
		m.logger.Warnf("Max connections reached for user %d", userID)
		return
	}
	m.connections[userID][conn] = true
	m.logger.Infof("Added WebSocket connection for user %d (total: %d)", userID, len(m.connections[userID]))
}

// RemoveConnection drops a connection for a user.
func (m *Manager) RemoveConnection(userID int64, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if conns, exists := m.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.connections, userID)
		}
		m.logger.Infof("Removed WebSocket connection for user %d (remaining: %d)", userID, len(conns))
	}
}

// SendToUser writes a message to every open connection of a user, pruning
// connections that fail. Returns the number of connections written to.
func (m *Manager) SendToUser(userID int64, message []byte) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	sent := 0
	if conns, exists := m.connections[userID]; exists {
		for conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				m.logger.Errorf("Failed to send WebSocket message to user %d: %v", userID, err)
				delete(conns, conn)
				continue
			}
			sent++
		}
		if len(conns) == 0 {
			delete(m.connections, userID)
		}
	}
	return sent
}
