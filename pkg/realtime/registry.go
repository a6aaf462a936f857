package realtime

import (
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Registry tracks live realtime connections and their room memberships for a
// single service instance. It is an explicit object rather than package
// state so transports and broadcasters can share one instance and tests can
// run with isolated registries.
//
// All methods are safe for concurrent use.
type Registry[T any] struct {
	mu          sync.RWMutex
	connections map[string]*Connection[T]
	rooms       map[string]map[string]*Connection[T] // room key -> connection id -> connection
	joined      map[string]map[string]struct{}       // connection id -> room keys
	bufferSize  int
	closed      bool
	log         *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption[T any] func(*Registry[T])

// WithRegistryLogger sets the logger for the Registry.
func WithRegistryLogger[T any](log *slog.Logger) RegistryOption[T] {
	return func(r *Registry[T]) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRegistry creates a connection registry. The bufferSize parameter sets
// each connection's outbox capacity.
func NewRegistry[T any](bufferSize int, opts ...RegistryOption[T]) *Registry[T] {
	r := &Registry[T]{
		connections: make(map[string]*Connection[T]),
		rooms:       make(map[string]map[string]*Connection[T]),
		joined:      make(map[string]map[string]struct{}),
		bufferSize:  bufferSize,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a new connection with no room memberships.
// On a closed registry it returns an already-closed connection so transports
// shutting down concurrently observe a closed event channel instead of nil.
func (r *Registry[T]) Register() *Connection[T] {
	conn := newConnection[T](r.bufferSize)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		conn.close()
		return conn
	}

	r.connections[conn.id] = conn
	r.joined[conn.id] = make(map[string]struct{})
	return conn
}

// Join adds the connection to the room keyed by recipientID. The call is
// idempotent; joining an unknown connection is a no-op because the transport
// may have disconnected concurrently.
func (r *Registry[T]) Join(connectionID, recipientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		r.log.Debug("join on unknown connection",
			logger.ConnectionID(connectionID), logger.Room(recipientID))
		return
	}

	room, ok := r.rooms[recipientID]
	if !ok {
		room = make(map[string]*Connection[T])
		r.rooms[recipientID] = room
	}
	room[connectionID] = conn
	r.joined[connectionID][recipientID] = struct{}{}
}

// Unregister removes the connection from every room it joined, discards it,
// and closes its outbox. It must be called exactly once per connection close,
// synchronously with the close event, so rooms never retain stale members.
func (r *Registry[T]) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return
	}

	for roomKey := range r.joined[connectionID] {
		room := r.rooms[roomKey]
		delete(room, connectionID)
		if len(room) == 0 {
			delete(r.rooms, roomKey)
		}
	}

	delete(r.joined, connectionID)
	delete(r.connections, connectionID)
	conn.close()
}

// MembersOf returns the connections currently joined to the room keyed by
// recipientID. The returned slice is a snapshot; membership changes after
// the call are not reflected.
func (r *Registry[T]) MembersOf(recipientID string) []*Connection[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[recipientID]
	members := make([]*Connection[T], 0, len(room))
	for _, conn := range room {
		members = append(members, conn)
	}
	return members
}

// Connections returns a snapshot of every live connection.
func (r *Registry[T]) Connections() []*Connection[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection[T], 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	return conns
}

// ConnectionCount returns the number of live connections.
func (r *Registry[T]) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Rooms returns the keys of rooms that currently have at least one member.
func (r *Registry[T]) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.rooms))
	for key := range r.rooms {
		keys = append(keys, key)
	}
	return keys
}

// Close unregisters every connection and rejects further registrations.
// It is safe to call multiple times.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for _, conn := range r.connections {
		conn.close()
	}
	clear(r.connections)
	clear(r.rooms)
	clear(r.joined)
}
