package notify

import "errors"

var (
	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("notification store unavailable")

	// ErrDeliveryFailed is returned when a notification was persisted but the
	// realtime broadcast failed. The record remains stored and queryable.
	ErrDeliveryFailed = errors.New("notification persisted but realtime delivery failed")

	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt notification record in store")

	// ErrWriteConflict is returned when an update repeatedly lost an
	// optimistic-lock race to concurrent writes. The backend is healthy
	// and the operation can be retried.
	ErrWriteConflict = errors.New("notification update lost write race")
)
