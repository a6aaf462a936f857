// Package api exposes the notification service over HTTP using chi.
//
// Errors follow one JSON shape: validation problems answer 422 with
// per-field details, storage outages answer 503, and anything
// unexpected answers a generic 500 without leaking internals. Panics in
// handlers are recovered and reported the same way.
package api
