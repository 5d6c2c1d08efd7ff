package handlers

import (
	"errors"

	"github.com/sasha-s/go-deadlock"

	"gridrealm/server/logger"
	"gridrealm/server/services"
)

var (
	// ErrServerFull is returned when the player cap is reached
	ErrServerFull = errors.New("server full")
	// ErrClosed is returned once the manager stops accepting clients
	ErrClosed = errors.New("client manager closed")
)

// ClientManager manages connected clients and delivers world events to them
type ClientManager struct {
	clients    map[int]*ClientHandler
	nextID     int
	maxClients int
	closed     bool
	mutex      deadlock.RWMutex
}

// NewClientManager creates a new client manager. maxClients <= 0 means
// no limit.
func NewClientManager(maxClients int) *ClientManager {
	return &ClientManager{
		clients:    make(map[int]*ClientHandler),
		nextID:     1,
		maxClients: maxClients,
	}
}

// Register assigns the next session ID to handler. The capacity check runs
// before an ID is consumed, so IDs of rejected connections are never skipped.
// onRegister, if set, runs with the new ID before the handler can receive
// broadcasts. It must not block or call back into the manager.
func (cm *ClientManager) Register(handler *ClientHandler, onRegister func(id int)) (int, error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.closed {
		return 0, ErrClosed
	}
	if cm.maxClients > 0 && len(cm.clients) >= cm.maxClients {
		return 0, ErrServerFull
	}
	id := cm.nextID
	cm.nextID++
	handler.id = id
	if onRegister != nil {
		onRegister(id)
	}
	cm.clients[id] = handler
	return id, nil
}

// Unregister removes a client from the manager
func (cm *ClientManager) Unregister(id int) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	delete(cm.clients, id)
}

// Get returns the handler registered under id
func (cm *ClientManager) Get(id int) (*ClientHandler, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	client, ok := cm.clients[id]
	return client, ok
}

// Count returns the number of registered clients
func (cm *ClientManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.clients)
}

// Send delivers a message to one client
func (cm *ClientManager) Send(id int, msg interface{}) {
	client, ok := cm.Get(id)
	if !ok {
		return
	}
	if err := client.conn.SendMessage(msg); err != nil {
		logger.Debug("Error sending to client", "player_id", id, "error", err)
	}
}

// BroadcastToAll sends a message to all connected clients
func (cm *ClientManager) BroadcastToAll(msg interface{}) {
	cm.BroadcastToOthers(0, msg)
}

// BroadcastToOthers sends a message to all connected clients except the
// specified one
func (cm *ClientManager) BroadcastToOthers(excludeID int, msg interface{}) {
	cm.ExecuteOnAllClients(func(client *ClientHandler) {
		if client.id == excludeID {
			return
		}
		if err := client.conn.SendMessage(msg); err != nil {
			logger.Debug("Error broadcasting to client", "player_id", client.id, "error", err)
		}
	})
}

// Dispatch delivers world events in order
func (cm *ClientManager) Dispatch(events []services.Event) {
	for _, event := range events {
		switch event.Audience {
		case services.AudienceOne:
			cm.Send(event.PlayerID, event.Message)
		case services.AudienceAll:
			cm.BroadcastToAll(event.Message)
		}
	}
}

// ExecuteOnAllClients executes a function for each connected client.
// action runs without the registry lock held.
func (cm *ClientManager) ExecuteOnAllClients(action func(*ClientHandler)) {
	for _, client := range cm.snapshot() {
		action(client)
	}
}

// Close stops new registrations and returns the clients still connected
func (cm *ClientManager) Close() []*ClientHandler {
	cm.mutex.Lock()
	cm.closed = true
	cm.mutex.Unlock()
	return cm.snapshot()
}

func (cm *ClientManager) snapshot() []*ClientHandler {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	clients := make([]*ClientHandler, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}
