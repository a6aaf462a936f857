package analytics_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/analytics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTracker_Track(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []analytics.Activity
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var activity analytics.Activity
		require.NoError(t, json.NewDecoder(r.Body).Decode(&activity))

		mu.Lock()
		received = append(received, activity)
		mu.Unlock()

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tracker := analytics.New(
		analytics.Config{URL: srv.URL, Timeout: time.Second},
		analytics.WithTrackerLogger(discardLogger()),
	)

	tracker.Track(context.Background(), analytics.Activity{
		Type:   "notification_created",
		UserID: "user-1",
		Details: map[string]any{
			"notificationType": "welcome",
		},
	})
	tracker.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "notification_created", received[0].Type)
	assert.Equal(t, "user-1", received[0].UserID)
	assert.Equal(t, "welcome", received[0].Details["notificationType"])
}

func TestTracker_DisabledWithoutURL(t *testing.T) {
	t.Parallel()

	tracker := analytics.New(analytics.Config{}, analytics.WithTrackerLogger(discardLogger()))
	require.False(t, tracker.Enabled())

	// Must be a silent no-op.
	tracker.Track(context.Background(), analytics.Activity{Type: "noop"})
	tracker.Close()
}

func TestTracker_SinkFailureDoesNotPropagate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tracker := analytics.New(
		analytics.Config{URL: srv.URL, Timeout: time.Second},
		analytics.WithTrackerLogger(discardLogger()),
	)

	// Track never returns an error; Close must still drain cleanly.
	tracker.Track(context.Background(), analytics.Activity{Type: "failed_event"})
	tracker.Close()
}

func TestTracker_SurvivesCancelledRequestContext(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(done)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tracker := analytics.New(
		analytics.Config{URL: srv.URL, Timeout: time.Second},
		analytics.WithTrackerLogger(discardLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // simulate an already-finished HTTP request
	tracker.Track(ctx, analytics.Activity{Type: "late_event"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tracking request never reached the sink")
	}
	tracker.Close()
}
