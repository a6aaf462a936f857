package notify

import (
	"time"

	"github.com/google/uuid"
)

// Priority represents the notification priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// DefaultTitle is used when a creation request carries no title.
const DefaultTitle = "Notification"

// Notification is the core domain record. Once created it is immutable
// except for the Read flag, which is flipped by Store.MarkRead.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Priority    Priority  `json:"priority"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
}

// newID generates a notification id. UUIDv4 stays unique under concurrent
// creation without the same-instant tiebreaker a time-based scheme needs.
func newID() string {
	return uuid.New().String()
}

// EventKind names the realtime event types pushed to clients.
type EventKind string

const (
	// EventNotification is pushed to the recipient's room.
	EventNotification EventKind = "notification"
	// EventGlobalNotification is pushed to every connected session.
	EventGlobalNotification EventKind = "global_notification"
)

// Event is the payload multicast through the realtime layer. It mirrors the
// stored record; nothing internal is added on the wire.
type Event struct {
	Kind         EventKind    `json:"type"`
	Notification Notification `json:"notification"`
}
