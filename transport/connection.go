package transport

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arareko/pysoa/serializer"
)

// Connection represents one open WebSocket peer.
type Connection struct {
	// ID uniquely identifies this connection.
	ID string

	// Peer is the remote host used for rate limiting.
	Peer string

	// Codec is the negotiated wire format.
	Codec serializer.Serializer

	// ConnectedAt records when the connection was established.
	ConnectedAt time.Time

	// LastActivity tracks the most recent frame received.
	LastActivity atomic.Value // time.Time

	netConn io.Closer
}

// NewConnection creates a connection with the given ID and peer.
func NewConnection(id, peer string, codec serializer.Serializer) *Connection {
	c := &Connection{
		ID:          id,
		Peer:        peer,
		Codec:       codec,
		ConnectedAt: time.Now().UTC(),
	}
	c.LastActivity.Store(time.Now().UTC())
	return c
}

// Touch updates the last activity timestamp.
func (c *Connection) Touch() {
	c.LastActivity.Store(time.Now().UTC())
}

// ConnectionManager tracks active connections.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionManager creates an empty connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns: make(map[string]*Connection),
	}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.conns[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove unregisters a connection.
func (cm *ConnectionManager) Remove(connID string) {
	cm.mu.Lock()
	delete(cm.conns, connID)
	cm.mu.Unlock()
}

// Get returns a connection by ID.
func (cm *ConnectionManager) Get(connID string) (*Connection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.conns[connID]
	return c, ok
}

// Count returns the number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// All returns a snapshot of all connections.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*Connection, 0, len(cm.conns))
	for _, c := range cm.conns {
		out = append(out, c)
	}
	return out
}

// closeAll closes the underlying socket of every connection. Their serve
// loops observe the error and unregister themselves.
func (cm *ConnectionManager) closeAll() {
	for _, c := range cm.All() {
		if c.netConn != nil {
			_ = c.netConn.Close()
		}
	}
}
