package realtime

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Health is an observability snapshot of the realtime layer.
type Health struct {
	ConnectionCount int      `json:"connections"`
	RoomKeys        []string `json:"rooms"`
}

// Broadcaster multicasts events to the rooms and connections tracked by a
// Registry. Delivery is at-most-once and fire-and-forget: events are queued
// on the outbox of each connection that is a member at call time, with no
// retry, no persistence and no replay for later joiners.
//
// Events pushed to a single connection preserve the order of the publish
// calls that produced them, for calls issued by this process.
type Broadcaster[T any] struct {
	registry *Registry[T]
	log      *slog.Logger
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption[T any] func(*Broadcaster[T])

// WithBroadcasterLogger sets the logger for the Broadcaster.
func WithBroadcasterLogger[T any](log *slog.Logger) BroadcasterOption[T] {
	return func(b *Broadcaster[T]) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster[T any](registry *Registry[T], opts ...BroadcasterOption[T]) *Broadcaster[T] {
	b := &Broadcaster[T]{
		registry: registry,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PublishToRecipient delivers event to every connection that is a member of
// the recipient's room at the instant of the call.
func (b *Broadcaster[T]) PublishToRecipient(ctx context.Context, recipientID string, event T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.registry.mu.RLock()
	closed := b.registry.closed
	b.registry.mu.RUnlock()
	if closed {
		return ErrRegistryClosed
	}

	members := b.registry.MembersOf(recipientID)
	for _, conn := range members {
		if !conn.push(event) {
			b.log.Debug("event dropped on closed connection",
				logger.ConnectionID(conn.ID()), logger.Room(recipientID))
		}
	}

	b.log.DebugContext(ctx, "published to room",
		logger.Room(recipientID), logger.Count(len(members)))
	return nil
}

// PublishGlobal delivers event to every currently registered connection
// regardless of room membership.
func (b *Broadcaster[T]) PublishGlobal(ctx context.Context, event T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.registry.mu.RLock()
	closed := b.registry.closed
	b.registry.mu.RUnlock()
	if closed {
		return ErrRegistryClosed
	}

	conns := b.registry.Connections()
	for _, conn := range conns {
		if !conn.push(event) {
			b.log.Debug("event dropped on closed connection",
				logger.ConnectionID(conn.ID()))
		}
	}

	b.log.DebugContext(ctx, "published globally", logger.Count(len(conns)))
	return nil
}

// Health reports the current connection count and active room keys.
func (b *Broadcaster[T]) Health() Health {
	return Health{
		ConnectionCount: b.registry.ConnectionCount(),
		RoomKeys:        b.registry.Rooms(),
	}
}
