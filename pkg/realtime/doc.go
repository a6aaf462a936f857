// Package realtime provides the live delivery layer of the notification
// core: a connection registry tracking sessions and their room memberships,
// and a broadcaster that multicasts events to rooms or to every connection.
//
// Rooms are ephemeral multicast groups keyed by recipient id. Membership is
// the set of live connections that joined the room; nothing is persisted and
// an empty room costs nothing. Both types are generic over the event payload
// so transports stay strongly typed:
//
//	registry := realtime.NewRegistry[notify.Event](64)
//	defer registry.Close()
//
//	broadcaster := realtime.NewBroadcaster(registry)
//
//	conn := registry.Register()
//	registry.Join(conn.ID(), "user-1")
//
//	_ = broadcaster.PublishToRecipient(ctx, "user-1", event)
//	for ev := range conn.Events() {
//		// forward to the transport
//	}
//
// Delivery is at-most-once: a connection joining after a publish never
// receives that event, and a stalled consumer loses the oldest queued events
// rather than blocking publishers.
package realtime
