package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/realtime"
)

// failingStore wraps a real store and fails selected operations, simulating
// an unreachable backend at specific pipeline steps.
type failingStore struct {
	Store
	failGlobal    bool
	failRecipient bool
	failCounters  bool
}

func (f *failingStore) AppendGlobal(ctx context.Context, n Notification) error {
	if f.failGlobal {
		return ErrStoreUnavailable
	}
	return f.Store.AppendGlobal(ctx, n)
}

func (f *failingStore) AppendRecipient(ctx context.Context, recipientID string, n Notification) error {
	if f.failRecipient {
		return ErrStoreUnavailable
	}
	return f.Store.AppendRecipient(ctx, recipientID, n)
}

func (f *failingStore) IncrCounter(ctx context.Context, key string) error {
	if f.failCounters {
		return ErrStoreUnavailable
	}
	return f.Store.IncrCounter(ctx, key)
}

// fakePublisher records published events and optionally fails.
type fakePublisher struct {
	mu        sync.Mutex
	recipient []Event
	global    []Event
	rooms     []string
	err       error
}

func (p *fakePublisher) PublishToRecipient(ctx context.Context, recipientID string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recipient = append(p.recipient, event)
	p.rooms = append(p.rooms, recipientID)
	return nil
}

func (p *fakePublisher) PublishGlobal(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.global = append(p.global, event)
	return nil
}

func (p *fakePublisher) Health() realtime.Health {
	return realtime.Health{ConnectionCount: 2, RoomKeys: []string{"u1"}}
}

func newTestService(store Store, pub Publisher, opts ...ServiceOption) *Service {
	return NewService(store, NewStats(store), pub, opts...)
}

func TestService_Submit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("persists, counts and publishes", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		pub := &fakePublisher{}
		svc := newTestService(store, pub)

		n, err := svc.Submit(ctx, SubmitInput{
			RecipientID: "u1",
			Type:        "login",
			Message:     "Welcome back",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, n.ID)
		assert.Equal(t, "u1", n.RecipientID)
		assert.Equal(t, DefaultTitle, n.Title)
		assert.Equal(t, PriorityNormal, n.Priority)
		assert.False(t, n.Read)
		assert.False(t, n.Timestamp.IsZero())

		global, err := store.RecentGlobal(ctx, 100)
		require.NoError(t, err)
		require.Len(t, global, 1)
		assert.Equal(t, n.ID, global[0].ID)

		feed, err := svc.QueryForRecipient(ctx, "u1", 0)
		require.NoError(t, err)
		require.Len(t, feed.Notifications, 1)
		assert.Equal(t, 1, feed.UnreadCount)

		require.Len(t, pub.recipient, 1)
		assert.Equal(t, EventNotification, pub.recipient[0].Kind)
		assert.Equal(t, "login", pub.recipient[0].Notification.Type)
		assert.Equal(t, "Welcome back", pub.recipient[0].Notification.Message)
		assert.Equal(t, []string{"u1"}, pub.rooms)
		assert.Empty(t, pub.global)

		snap, err := svc.StatsSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.Counters["total_sent"])
		assert.Equal(t, int64(1), snap.Counters["type_login"])
		assert.Equal(t, int64(1), snap.Counters["priority_normal"])
	})

	t.Run("validation failure leaves no trace", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		pub := &fakePublisher{}
		svc := newTestService(store, pub)

		_, err := svc.Submit(ctx, SubmitInput{RecipientID: "u1"})
		require.Error(t, err)

		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr, "type")
		assert.Contains(t, verr, "message")

		global, _ := store.RecentGlobal(ctx, 100)
		assert.Empty(t, global)
		assert.Empty(t, pub.recipient)

		snap, _ := svc.StatsSnapshot(ctx)
		assert.Empty(t, snap.Counters)
	})

	t.Run("invalid priority rejected", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(NewMemoryStore(), &fakePublisher{})
		_, err := svc.Submit(ctx, SubmitInput{
			RecipientID: "u1",
			Type:        "login",
			Message:     "hi",
			Priority:    "urgent",
		})
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr, "priority")
	})

	t.Run("store failure aborts pipeline", func(t *testing.T) {
		t.Parallel()

		store := &failingStore{Store: NewMemoryStore(), failGlobal: true}
		pub := &fakePublisher{}
		svc := newTestService(store, pub)

		_, err := svc.Submit(ctx, SubmitInput{RecipientID: "u1", Type: "login", Message: "hi"})
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Empty(t, pub.recipient)

		snap, _ := svc.StatsSnapshot(ctx)
		assert.Empty(t, snap.Counters)
	})

	t.Run("broadcast failure reports partial success", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		pub := &fakePublisher{err: errors.New("socket gone")}
		svc := newTestService(store, pub)

		n, err := svc.Submit(ctx, SubmitInput{RecipientID: "u1", Type: "login", Message: "hi"})
		require.ErrorIs(t, err, ErrDeliveryFailed)
		assert.NotEmpty(t, n.ID)

		// Persisted and queryable despite the failed broadcast.
		feed, ferr := svc.QueryForRecipient(ctx, "u1", 0)
		require.NoError(t, ferr)
		assert.Len(t, feed.Notifications, 1)
	})

	t.Run("high priority also publishes globally", func(t *testing.T) {
		t.Parallel()

		pub := &fakePublisher{}
		svc := newTestService(NewMemoryStore(), pub)

		_, err := svc.Submit(ctx, SubmitInput{
			RecipientID: "u1",
			Type:        "alert",
			Message:     "disk full",
			Priority:    PriorityHigh,
		})
		require.NoError(t, err)
		require.Len(t, pub.global, 1)
		assert.Equal(t, EventGlobalNotification, pub.global[0].Kind)
	})

	t.Run("nil publisher skips delivery", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(NewMemoryStore(), nil)
		_, err := svc.Submit(ctx, SubmitInput{RecipientID: "u1", Type: "login", Message: "hi"})
		assert.NoError(t, err)
	})
}

func TestService_Submit_ConcurrentDistinctIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(store, &fakePublisher{})

	const submitters = 40
	ids := make(chan string, submitters)

	var wg sync.WaitGroup
	wg.Add(submitters)
	for i := range submitters {
		go func() {
			defer wg.Done()
			n, err := svc.Submit(ctx, SubmitInput{
				RecipientID: "u1",
				Type:        "burst",
				Message:     fmt.Sprintf("m%d", i),
			})
			assert.NoError(t, err)
			ids <- n.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, submitters)
	for id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, submitters)

	feed, err := svc.QueryForRecipient(ctx, "u1", 50)
	require.NoError(t, err)
	assert.Len(t, feed.Notifications, min(submitters, DefaultRecipientCap))
}

func TestService_SubmitBulk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("mixed valid and invalid items", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		svc := newTestService(store, &fakePublisher{})

		items := []SubmitInput{
			{RecipientID: "u1", Type: "welcome", Message: "hello"},
			{RecipientID: "", Type: "welcome", Message: "no recipient"},
			{RecipientID: "u2", Type: "login", Message: "hi"},
			{RecipientID: "u3", Type: "login"},
			{RecipientID: "u1", Type: "welcome", Message: "again"},
		}

		result := svc.SubmitBulk(ctx, items)
		assert.Equal(t, 3, result.Successful)
		assert.Equal(t, 2, result.Failed)
		require.Len(t, result.Results, 5)

		assert.True(t, result.Results[0].Success)
		assert.False(t, result.Results[1].Success)
		assert.True(t, result.Results[2].Success)
		assert.False(t, result.Results[3].Success)
		assert.True(t, result.Results[4].Success)
		assert.NotEmpty(t, result.Results[1].Error)
		require.NotNil(t, result.Results[2].Notification)
		assert.Equal(t, "u2", result.Results[2].Notification.RecipientID)

		// Valid items persisted regardless of their position around invalid ones.
		global, err := store.RecentGlobal(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, global, 3)
	})

	t.Run("delivery failure still counts as success", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(NewMemoryStore(), &fakePublisher{err: errors.New("down")})

		result := svc.SubmitBulk(ctx, []SubmitInput{
			{RecipientID: "u1", Type: "welcome", Message: "hello"},
		})
		assert.Equal(t, 1, result.Successful)
		assert.Zero(t, result.Failed)
		assert.True(t, result.Results[0].Success)
		assert.NotEmpty(t, result.Results[0].Error)
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(NewMemoryStore(), &fakePublisher{})
		result := svc.SubmitBulk(ctx, nil)
		assert.Zero(t, result.Successful)
		assert.Zero(t, result.Failed)
		assert.Empty(t, result.Results)
	})
}

func TestService_QueryRecent_DefaultLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(store, &fakePublisher{})

	for i := range 30 {
		_, err := svc.Submit(ctx, SubmitInput{
			RecipientID: "u1",
			Type:        "seq",
			Message:     fmt.Sprintf("m%d", i),
		})
		require.NoError(t, err)
	}

	got, err := svc.QueryRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultQueryLimit)
	assert.Equal(t, "m29", got[0].Message)
}

func TestService_QueryForRecipient_Validation(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore(), &fakePublisher{})
	_, err := svc.QueryForRecipient(context.Background(), "", 10)

	var verr ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestService_MarkRead_AffectsUnreadCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(NewMemoryStore(), &fakePublisher{})

	first, err := svc.Submit(ctx, SubmitInput{RecipientID: "u1", Type: "a", Message: "one"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{RecipientID: "u1", Type: "a", Message: "two"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, "u1", first.ID))

	feed, err := svc.QueryForRecipient(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.UnreadCount)
	assert.Len(t, feed.Notifications, 2)
}

func TestService_StatsSnapshot_IncludesRealtimeHealth(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore(), &fakePublisher{})

	snap, err := svc.StatsSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Connections)
	assert.Equal(t, 1, snap.Rooms)
}

func TestService_Submit_TimestampFromClock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(NewMemoryStore(), &fakePublisher{},
		withServiceClock(func() time.Time { return fixed }))

	n, err := svc.Submit(context.Background(), SubmitInput{
		RecipientID: "u1", Type: "t", Message: "m",
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, n.Timestamp)
}
