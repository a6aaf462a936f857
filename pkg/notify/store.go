package notify

import (
	"context"
	"time"
)

// Bound defaults for the two logs. The asymmetry is deliberate: the global
// feed is size-bounded only, the per-recipient log is additionally
// time-bounded by a sliding window that resets on every write.
const (
	DefaultGlobalCap    = 100
	DefaultRecipientCap = 50
	DefaultRecipientTTL = 7 * 24 * time.Hour
)

// Store handles notification persistence: two bounded append-only logs plus
// a monotonic counter set.
//
// Append-then-trim must be a single atomic unit per log, and concurrent
// appends to the same log key must serialize among themselves; appends to
// different keys proceed independently. An unreachable backend surfaces as
// ErrStoreUnavailable.
type Store interface {
	// AppendGlobal appends n to the global log and trims it to the newest
	// GlobalCap entries.
	AppendGlobal(ctx context.Context, n Notification) error

	// AppendRecipient appends n to the recipient's log, trims it to the
	// newest RecipientCap entries and resets the log's sliding expiration.
	AppendRecipient(ctx context.Context, recipientID string, n Notification) error

	// RecentGlobal returns the newest entries of the global log, newest
	// first, at most limit and at most the global cap.
	RecentGlobal(ctx context.Context, limit int) ([]Notification, error)

	// RecentForRecipient returns the newest entries of the recipient's log,
	// newest first. An expired or never-written log reads as empty, never as
	// an error.
	RecentForRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error)

	// MarkRead flips the read flag on the identified entries of the
	// recipient's log. Unknown ids are ignored.
	MarkRead(ctx context.Context, recipientID string, ids ...string) error

	// CountUnread returns the number of unread entries in the recipient's log.
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// IncrCounter atomically increments the named monotonic counter.
	IncrCounter(ctx context.Context, key string) error

	// Counters returns a point-in-time copy of all counters. Atomicity is
	// per key; a multi-key increment sequence may be observed partially.
	Counters(ctx context.Context) (map[string]int64, error)

	// Healthcheck reports whether the backing store is reachable.
	Healthcheck(ctx context.Context) error
}
