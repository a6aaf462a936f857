package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// RecipientID records the recipient identifier under the key "recipient_id".
// If id is empty, it returns an empty Attr.
func RecipientID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("recipient_id", id)
}

// NotificationID records the notification identifier under the key
// "notification_id". If id is empty, it returns an empty Attr.
func NotificationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("notification_id", id)
}

// ConnectionID records the realtime connection identifier under the key
// "connection_id". If id is empty, it returns an empty Attr.
func ConnectionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("connection_id", id)
}

// Room records the room key under the key "room".
func Room(key string) slog.Attr {
	return slog.String("room", key)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Count records a generic count under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}
