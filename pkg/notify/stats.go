package notify

import "context"

// Counter keys maintained by Stats. Type and priority keys are derived per
// value, e.g. "type_welcome" and "priority_high".
const (
	CounterTotalSent      = "total_sent"
	counterTypePrefix     = "type_"
	counterPriorityPrefix = "priority_"
)

// Stats wraps the store's counter set with semantic increment operations.
// Counters are monotonic; nothing in normal operation decrements or resets
// them.
type Stats struct {
	store Store
}

// NewStats creates a stats aggregator over the given store.
func NewStats(store Store) *Stats {
	return &Stats{store: store}
}

// RecordSent increments the counters for one sent notification: the total,
// its type and its priority. Each increment is atomic per key; the trio is
// not atomic as a group, so a snapshot taken mid-record may observe a
// partial update.
func (s *Stats) RecordSent(ctx context.Context, n Notification) error {
	if err := s.store.IncrCounter(ctx, CounterTotalSent); err != nil {
		return err
	}
	if err := s.store.IncrCounter(ctx, counterTypePrefix+n.Type); err != nil {
		return err
	}
	return s.store.IncrCounter(ctx, counterPriorityPrefix+string(n.Priority))
}

// Snapshot returns a point-in-time copy of all counters.
func (s *Stats) Snapshot(ctx context.Context) (map[string]int64, error) {
	return s.store.Counters(ctx)
}
