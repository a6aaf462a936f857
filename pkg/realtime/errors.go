package realtime

import "errors"

var (
	// ErrRegistryClosed is returned when publishing through a closed registry.
	ErrRegistryClosed = errors.New("realtime: registry is closed")
)
