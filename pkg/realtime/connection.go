package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is a live realtime session tracked by a Registry. Events
// published to its rooms are queued on a bounded outbox channel; a transport
// (websocket session, test harness) drains the outbox via Events.
//
// The outbox uses a drop-oldest overflow policy: when a consumer stalls and
// the buffer fills up, the oldest queued event is discarded to make room for
// the newest one. Publishers never block on a slow consumer.
type Connection[T any] struct {
	id        string
	createdAt time.Time
	outbox    chan T
	mu        sync.Mutex
	closed    bool
	dropped   int
}

func newConnection[T any](bufferSize int) *Connection[T] {
	return &Connection[T]{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		// Minimum buffer size of 1 keeps push non-blocking even when the
		// consumer never reads.
		outbox: make(chan T, max(bufferSize, 1)),
	}
}

// ID returns the unique connection identifier.
func (c *Connection[T]) ID() string { return c.id }

// CreatedAt returns the time the connection was registered.
func (c *Connection[T]) CreatedAt() time.Time { return c.createdAt }

// Events returns the channel the transport reads delivered events from.
// The channel is closed when the connection is unregistered.
func (c *Connection[T]) Events() <-chan T { return c.outbox }

// Dropped returns the number of events discarded due to a full outbox.
func (c *Connection[T]) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// push queues an event for delivery. When the outbox is full the oldest
// queued event is dropped first. Returns false if the connection is closed.
func (c *Connection[T]) push(event T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	for {
		select {
		case c.outbox <- event:
			return true
		default:
		}
		// Outbox full: discard the oldest event and retry. The consumer may
		// race us for the slot, hence the loop.
		select {
		case <-c.outbox:
			c.dropped++
		default:
		}
	}
}

// close closes the outbox exactly once. Further pushes are rejected.
func (c *Connection[T]) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.outbox)
	}
}
