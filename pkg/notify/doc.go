// Package notify implements the notification distribution core: a bounded,
// expiring persistent store, a stats aggregator over its counter set, and
// the ingress service that composes store write, stats increment and
// realtime publish for every creation request.
//
// # Persistence model
//
// Two append-only logs back the system. The global log keeps the newest 100
// notifications across all recipients and is bounded by size only. Each
// recipient log keeps that recipient's newest 50 notifications and is
// additionally bounded by time: every write resets a 7-day sliding window,
// and a log whose window lapses reads as empty. The asymmetry between the
// two policies is intentional.
//
// # Basic usage
//
//	store := notify.NewMemoryStore()
//	stats := notify.NewStats(store)
//
//	registry := realtime.NewRegistry[notify.Event](64)
//	broadcaster := realtime.NewBroadcaster(registry)
//
//	svc := notify.NewService(store, stats, broadcaster)
//
//	n, err := svc.Submit(ctx, notify.SubmitInput{
//		RecipientID: "user-1",
//		Type:        "welcome",
//		Message:     "Thanks for joining",
//	})
//
// Swap NewMemoryStore for NewRedisStore to persist across restarts. Both
// implementations serialize appends per log key, never across keys.
package notify
