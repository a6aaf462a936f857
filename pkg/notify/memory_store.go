package notify

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Suitable for development, testing and single-instance deployments that can
// afford to lose the logs on restart.
//
// Each log carries its own lock, so appends to different keys proceed
// independently while appends to the same key serialize. The outer mutex
// only guards the log map itself.
type MemoryStore struct {
	mu          sync.RWMutex
	global      *boundedLog
	byRecipient map[string]*recipientLog

	countersMu sync.Mutex
	counters   map[string]int64

	globalCap    int
	recipientCap int
	recipientTTL time.Duration
	now          func() time.Time
}

// boundedLog is a size-bounded FIFO, newest first.
type boundedLog struct {
	mu      sync.Mutex
	entries []Notification
	cap     int
}

// prepend inserts n at the head and drops the oldest entries over cap.
func (l *boundedLog) prepend(n Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]Notification{n}, l.entries...)
	if len(l.entries) > l.cap {
		l.entries = l.entries[:l.cap]
	}
}

// snapshot copies up to limit entries, newest first.
func (l *boundedLog) snapshot(limit int) []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]Notification, limit)
	copy(out, l.entries[:limit])
	return out
}

// recipientLog adds a sliding expiration window on top of boundedLog.
type recipientLog struct {
	boundedLog
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithGlobalCap overrides the global log capacity.
func WithGlobalCap(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.globalCap = n
		}
	}
}

// WithRecipientCap overrides the per-recipient log capacity.
func WithRecipientCap(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.recipientCap = n
		}
	}
}

// WithRecipientTTL overrides the sliding expiration window of recipient logs.
func WithRecipientTTL(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.recipientTTL = d
		}
	}
}

// WithClock overrides the time source. Used by tests to drive expiration.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an in-memory notification store with the default
// bounds (100 global, 50 per recipient, 7-day sliding window).
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		byRecipient:  make(map[string]*recipientLog),
		counters:     make(map[string]int64),
		globalCap:    DefaultGlobalCap,
		recipientCap: DefaultRecipientCap,
		recipientTTL: DefaultRecipientTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.global = &boundedLog{cap: s.globalCap}
	return s
}

func (s *MemoryStore) AppendGlobal(ctx context.Context, n Notification) error {
	s.global.prepend(n)
	return nil
}

func (s *MemoryStore) AppendRecipient(ctx context.Context, recipientID string, n Notification) error {
	log := s.recipientLogFor(recipientID)

	log.mu.Lock()
	defer log.mu.Unlock()

	// A lapsed window means the old entries are gone; the new write starts a
	// fresh log rather than resurrecting expired data.
	now := s.now()
	if !log.expiresAt.IsZero() && now.After(log.expiresAt) {
		log.entries = nil
	}

	log.entries = append([]Notification{n}, log.entries...)
	if len(log.entries) > log.cap {
		log.entries = log.entries[:log.cap]
	}
	log.expiresAt = now.Add(s.recipientTTL)
	return nil
}

// recipientLogFor returns the log for recipientID, creating it if needed.
func (s *MemoryStore) recipientLogFor(recipientID string) *recipientLog {
	s.mu.RLock()
	log, ok := s.byRecipient[recipientID]
	s.mu.RUnlock()
	if ok {
		return log
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok = s.byRecipient[recipientID]; ok {
		return log
	}
	log = &recipientLog{boundedLog: boundedLog{cap: s.recipientCap}}
	s.byRecipient[recipientID] = log
	return log
}

// liveRecipientLog returns the recipient's log when it exists and has not
// expired. Expiration is silent: the caller sees an absent log.
func (s *MemoryStore) liveRecipientLog(recipientID string) *recipientLog {
	s.mu.RLock()
	log, ok := s.byRecipient[recipientID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	log.mu.Lock()
	expired := !log.expiresAt.IsZero() && s.now().After(log.expiresAt)
	log.mu.Unlock()
	if expired {
		return nil
	}
	return log
}

func (s *MemoryStore) RecentGlobal(ctx context.Context, limit int) ([]Notification, error) {
	return s.global.snapshot(limit), nil
}

func (s *MemoryStore) RecentForRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	log := s.liveRecipientLog(recipientID)
	if log == nil {
		return []Notification{}, nil
	}
	return log.snapshot(limit), nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, recipientID string, ids ...string) error {
	log := s.liveRecipientLog(recipientID)
	if log == nil || len(ids) == 0 {
		return nil
	}

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	for i := range log.entries {
		if _, ok := idSet[log.entries[i].ID]; ok {
			log.entries[i].Read = true
		}
	}
	return nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	log := s.liveRecipientLog(recipientID)
	if log == nil {
		return 0, nil
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	count := 0
	for _, n := range log.entries {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) IncrCounter(ctx context.Context, key string) error {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	s.counters[key]++
	return nil
}

func (s *MemoryStore) Counters(ctx context.Context) (map[string]int64, error) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()

	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out, nil
}

// Healthcheck always succeeds for the in-memory store.
func (s *MemoryStore) Healthcheck(ctx context.Context) error {
	return nil
}
