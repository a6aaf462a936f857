package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/realtime"
)

// Publisher is the realtime fan-out seam the service publishes through.
// realtime.Broadcaster[Event] satisfies it; tests supply fakes.
type Publisher interface {
	PublishToRecipient(ctx context.Context, recipientID string, event Event) error
	PublishGlobal(ctx context.Context, event Event) error
	Health() realtime.Health
}

// Query limit defaults enforced server-side; the per-log caps bound the
// maximum (see store.go).
const DefaultQueryLimit = 20

// SubmitInput is a notification-creation request. Callers are
// pre-authenticated upstream; RecipientID is trusted as-is.
type SubmitInput struct {
	RecipientID string   `json:"recipientId"`
	Type        string   `json:"type"`
	Title       string   `json:"title,omitempty"`
	Message     string   `json:"message"`
	Priority    Priority `json:"priority,omitempty"`
}

// validate reports missing or malformed fields.
func (in SubmitInput) validate() error {
	verr := NewValidationError()
	if in.RecipientID == "" {
		verr.Add("recipientId", "is required")
	}
	if in.Type == "" {
		verr.Add("type", "is required")
	}
	if in.Message == "" {
		verr.Add("message", "is required")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		verr.Add("priority", fmt.Sprintf("must be one of %q, %q, %q", PriorityLow, PriorityNormal, PriorityHigh))
	}
	if !verr.IsEmpty() {
		return verr
	}
	return nil
}

// BulkItemResult is the outcome of one item in a bulk submit.
type BulkItemResult struct {
	Index        int           `json:"index"`
	Success      bool          `json:"success"`
	Notification *Notification `json:"notification,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// BulkResult summarizes a bulk submit. Items are independent; there is no
// atomicity across the batch.
type BulkResult struct {
	Results    []BulkItemResult `json:"results"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
}

// RecipientFeed is the result of a recipient-scoped query.
type RecipientFeed struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// StatsSnapshot combines the counter set with a realtime observability
// snapshot.
type StatsSnapshot struct {
	Counters    map[string]int64 `json:"counters"`
	Connections int              `json:"connections"`
	Rooms       int              `json:"rooms"`
}

// Service is the ingress core: every notification-creation request composes
// store write, stats increment and realtime publish, in that order, and the
// query operations read the store directly.
type Service struct {
	store     Store
	stats     *Stats
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the Service.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// withServiceClock overrides the time source in tests.
func withServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the ingress service. A nil publisher disables realtime
// delivery; persistence and stats still run.
func NewService(store Store, stats *Stats, publisher Publisher, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		stats:     stats,
		publisher: publisher,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the input, persists the notification to both logs,
// bumps the counters and publishes to the recipient's room. High-priority
// notifications are additionally published to every connected session.
//
// The first failing step aborts the remaining ones. A broadcast failure
// after successful persistence returns the stored record together with
// ErrDeliveryFailed; the record is not rolled back.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Notification, error) {
	if err := in.validate(); err != nil {
		return Notification{}, err
	}

	n := Notification{
		ID:          newID(),
		RecipientID: in.RecipientID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		Priority:    in.Priority,
		Timestamp:   s.now().UTC(),
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}

	if err := s.store.AppendGlobal(ctx, n); err != nil {
		return Notification{}, fmt.Errorf("append global log: %w", err)
	}
	if err := s.store.AppendRecipient(ctx, n.RecipientID, n); err != nil {
		return Notification{}, fmt.Errorf("append recipient log: %w", err)
	}
	if err := s.stats.RecordSent(ctx, n); err != nil {
		return Notification{}, fmt.Errorf("record stats: %w", err)
	}

	if s.publisher != nil {
		if err := s.publish(ctx, n); err != nil {
			// The notification is persisted and queryable; delivery is
			// fire-and-forget, so the caller gets the record plus a
			// partial-success error instead of a rollback.
			s.log.WarnContext(ctx, "notification stored but not delivered",
				logger.NotificationID(n.ID),
				logger.RecipientID(n.RecipientID),
				logger.Error(err),
			)
			return n, errors.Join(ErrDeliveryFailed, err)
		}
	}

	return n, nil
}

// publish sends the realtime events for n: always to the recipient's room,
// and globally for high priority.
func (s *Service) publish(ctx context.Context, n Notification) error {
	if err := s.publisher.PublishToRecipient(ctx, n.RecipientID, Event{
		Kind:         EventNotification,
		Notification: n,
	}); err != nil {
		return err
	}

	if n.Priority == PriorityHigh {
		return s.publisher.PublishGlobal(ctx, Event{
			Kind:         EventGlobalNotification,
			Notification: n,
		})
	}
	return nil
}

// SubmitBulk processes each item independently: one item's failure does not
// affect the others, and the result enumerates a per-item outcome plus
// aggregate counts. Items whose broadcast failed but whose record persisted
// count as successful.
func (s *Service) SubmitBulk(ctx context.Context, items []SubmitInput) BulkResult {
	result := BulkResult{Results: make([]BulkItemResult, 0, len(items))}

	for i, item := range items {
		n, err := s.Submit(ctx, item)
		switch {
		case err == nil:
			result.Results = append(result.Results, BulkItemResult{
				Index:        i,
				Success:      true,
				Notification: &n,
			})
			result.Successful++
		case errors.Is(err, ErrDeliveryFailed):
			result.Results = append(result.Results, BulkItemResult{
				Index:        i,
				Success:      true,
				Notification: &n,
				Error:        err.Error(),
			})
			result.Successful++
		default:
			result.Results = append(result.Results, BulkItemResult{
				Index: i,
				Error: err.Error(),
			})
			result.Failed++
		}
	}

	return result
}

// QueryRecent reads the global log, newest first. A non-positive limit uses
// the default; the global cap bounds the maximum.
func (s *Service) QueryRecent(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	return s.store.RecentGlobal(ctx, limit)
}

// QueryForRecipient reads the recipient's log and unread count. An expired
// or unknown recipient log yields an empty feed.
func (s *Service) QueryForRecipient(ctx context.Context, recipientID string, limit int) (RecipientFeed, error) {
	if recipientID == "" {
		verr := NewValidationError()
		verr.Add("recipientId", "is required")
		return RecipientFeed{}, verr
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	notifications, err := s.store.RecentForRecipient(ctx, recipientID, limit)
	if err != nil {
		return RecipientFeed{}, err
	}
	unread, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return RecipientFeed{}, err
	}

	return RecipientFeed{Notifications: notifications, UnreadCount: unread}, nil
}

// MarkRead flips the read flag on the given notifications in the
// recipient's log.
func (s *Service) MarkRead(ctx context.Context, recipientID string, ids ...string) error {
	if recipientID == "" {
		verr := NewValidationError()
		verr.Add("recipientId", "is required")
		return verr
	}
	return s.store.MarkRead(ctx, recipientID, ids...)
}

// StatsSnapshot returns the counter snapshot plus connection and room
// counts for observability.
func (s *Service) StatsSnapshot(ctx context.Context) (StatsSnapshot, error) {
	counters, err := s.stats.Snapshot(ctx)
	if err != nil {
		return StatsSnapshot{}, err
	}

	snap := StatsSnapshot{Counters: counters}
	if s.publisher != nil {
		health := s.publisher.Health()
		snap.Connections = health.ConnectionCount
		snap.Rooms = len(health.RoomKeys)
	}
	return snap, nil
}
