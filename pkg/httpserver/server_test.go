package httpserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/httpserver"
)

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	}()

	// Give the listener a moment to come up, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_RunTwice(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Run(ctx, nil) }()
	time.Sleep(50 * time.Millisecond)

	err := srv.Run(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestServer_StartFailure(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("256.256.256.256:99999"))
	err := srv.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestHealthCheckHandler_Liveness(t *testing.T) {
	t.Parallel()

	h := httpserver.HealthCheckHandler(context.Background(), nil)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "ALIVE", string(body))
}

func TestHealthCheckHandler_Readiness(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("store down") }

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		h := httpserver.HealthCheckHandler(context.Background(), discardLogger(), ok, ok)
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		h := httpserver.HealthCheckHandler(context.Background(), discardLogger(), ok, fail)
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
