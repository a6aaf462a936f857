package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// Config for the analytics sink.
type Config struct {
	URL     string        `env:"ANALYTICS_URL"`                      // URL of the upstream tracking endpoint; empty disables tracking.
	Timeout time.Duration `env:"ANALYTICS_TIMEOUT" envDefault:"5s"`  // Timeout per tracking request.
}

// Activity is one tracked event.
type Activity struct {
	Type    string         `json:"type"`
	UserID  string         `json:"userId,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Tracker posts activity events to an upstream analytics service on a
// fire-and-forget basis. Failures are logged and never surface to the
// caller; the sink being down must not affect this service's outcomes.
type Tracker struct {
	url     string
	timeout time.Duration
	client  *http.Client
	log     *slog.Logger
	wg      sync.WaitGroup
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger for the Tracker.
func WithTrackerLogger(log *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// WithHTTPClient sets a custom HTTP client, mostly for tests.
func WithHTTPClient(client *http.Client) TrackerOption {
	return func(t *Tracker) {
		if client != nil {
			t.client = client
		}
	}
}

// New creates a tracker. With an empty cfg.URL the tracker is disabled and
// Track becomes a no-op, so callers never need a nil check.
func New(cfg Config, opts ...TrackerOption) *Tracker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	t := &Tracker{
		url:     cfg.URL,
		timeout: timeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return t
}

// Enabled reports whether a sink URL is configured.
func (t *Tracker) Enabled() bool { return t.url != "" }

// Track dispatches the activity asynchronously and returns immediately.
// The delivery detaches from the request context so an already-answered
// request does not cancel it, bounded by the configured timeout instead.
func (t *Tracker) Track(ctx context.Context, activity Activity) {
	if !t.Enabled() {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		if err := t.send(ctx, activity); err != nil {
			t.log.WarnContext(ctx, "analytics event dropped",
				logger.Event(activity.Type),
				logger.Error(err),
			)
		}
	}()
}

func (t *Tracker) send(ctx context.Context, activity Activity) error {
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("analytics sink responded %d", resp.StatusCode)
	}
	return nil
}

// Close waits for in-flight deliveries to finish. Call on shutdown.
func (t *Tracker) Close() {
	t.wg.Wait()
}
