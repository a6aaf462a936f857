package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifyhub/pkg/analytics"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notify"
)

const (
	recentLimitCap    = notify.DefaultGlobalCap
	recipientLimitCap = notify.DefaultRecipientCap
)

// Handler serves the notification HTTP API.
type Handler struct {
	svc     *notify.Service
	tracker *analytics.Tracker
	log     *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger for the Handler.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithTracker enables activity tracking for mutating operations.
func WithTracker(tracker *analytics.Tracker) HandlerOption {
	return func(h *Handler) {
		if tracker != nil {
			h.tracker = tracker
		}
	}
}

// NewHandler creates the API handler around a notification service.
func NewHandler(svc *notify.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc: svc,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tracker == nil {
		h.tracker = analytics.New(analytics.Config{}) // disabled
	}
	return h
}

// submitResponse is the stored record, extended with a delivery error
// when persistence succeeded but realtime fan-out did not.
type submitResponse struct {
	notify.Notification
	DeliveryError string `json:"deliveryError,omitempty"`
}

type listResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Count         int                   `json:"count"`
}

type feedResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Count         int                   `json:"count"`
	UnreadCount   int                   `json:"unreadCount"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var in notify.SubmitInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	resp := submitResponse{}
	n, err := h.svc.Submit(r.Context(), in)
	switch {
	case err == nil:
	case errors.Is(err, notify.ErrDeliveryFailed):
		// Stored but not broadcast; the record is still the answer.
		resp.DeliveryError = "realtime delivery failed"
	default:
		writeError(w, err)
		return
	}
	resp.Notification = n

	h.tracker.Track(r.Context(), analytics.Activity{
		Type:   "notification_created",
		UserID: n.RecipientID,
		Details: map[string]any{
			"notificationId":   n.ID,
			"notificationType": n.Type,
			"priority":         string(n.Priority),
		},
	})

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) submitBulk(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Items []notify.SubmitInput `json:"items"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	result := h.svc.SubmitBulk(r.Context(), in.Items)

	h.tracker.Track(r.Context(), analytics.Activity{
		Type: "notifications_bulk_created",
		Details: map[string]any{
			"successful": result.Successful,
			"failed":     result.Failed,
		},
	})

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, recentLimitCap)
	if err != nil {
		writeError(w, err)
		return
	}

	notifications, err := h.svc.QueryRecent(r.Context(), limit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "recent query failed", logger.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Notifications: notifications,
		Count:         len(notifications),
	})
}

func (h *Handler) recipientFeed(w http.ResponseWriter, r *http.Request) {
	recipientID := chi.URLParam(r, "recipientID")

	limit, err := parseLimit(r, recipientLimitCap)
	if err != nil {
		writeError(w, err)
		return
	}

	feed, err := h.svc.QueryForRecipient(r.Context(), recipientID, limit)
	if err != nil {
		if !errors.As(err, new(notify.ValidationError)) {
			h.log.ErrorContext(r.Context(), "recipient query failed",
				logger.RecipientID(recipientID), logger.Error(err))
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedResponse{
		Notifications: feed.Notifications,
		Count:         len(feed.Notifications),
		UnreadCount:   feed.UnreadCount,
	})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	recipientID := chi.URLParam(r, "recipientID")

	var in struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if len(in.IDs) == 0 {
		verr := notify.NewValidationError()
		verr.Add("ids", "at least one notification id is required")
		writeError(w, verr)
		return
	}

	if err := h.svc.MarkRead(r.Context(), recipientID, in.IDs...); err != nil {
		writeError(w, err)
		return
	}

	h.tracker.Track(r.Context(), analytics.Activity{
		Type:    "notifications_read",
		UserID:  recipientID,
		Details: map[string]any{"count": len(in.IDs)},
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.StatsSnapshot(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "stats snapshot failed", logger.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// parseLimit reads the limit query parameter, applying the default and
// the endpoint's hard cap. A non-numeric or negative value is a
// validation error rather than a silent fallback.
func parseLimit(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return notify.DefaultQueryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		verr := notify.NewValidationError()
		verr.Add("limit", "must be a non-negative integer")
		return 0, verr
	}
	if limit == 0 {
		return notify.DefaultQueryLimit, nil
	}
	if limit > maxLimit {
		return maxLimit, nil
	}
	return limit, nil
}
