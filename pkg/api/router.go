package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
)

// RouterConfig bundles the non-handler pieces the router mounts.
type RouterConfig struct {
	WebSocket http.Handler // realtime upgrade endpoint, optional
	Health    http.Handler // liveness/readiness endpoint, optional
	Logger    *slog.Logger

	// AllowedOrigins restricts cross-origin callers. Empty means any
	// origin; the API sits behind a trusted gateway and carries no
	// credentials, so the default stays open for browser clients.
	AllowedOrigins []string
}

// NewRouter assembles the HTTP surface: notification CRUD, stats, health
// and the realtime upgrade endpoint.
func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestLogger(log))
	r.Use(recoverer(log))

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", h.submit)
		r.Post("/bulk", h.submitBulk)
		r.Get("/recent", h.recent)
		r.Route("/recipient/{recipientID}", func(r chi.Router) {
			r.Get("/", h.recipientFeed)
			r.Post("/read", h.markRead)
		})
	})
	r.Get("/stats", h.stats)

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.ServeHTTP)
	}
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket.ServeHTTP)
	}

	return r
}

// recoverer turns panics into a generic 500 JSON error so one bad
// request never takes the process down.
func recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path),
					)
					writeJSON(w, http.StatusInternalServerError, errorResponse{Error: ErrorDetail{
						Code:    "internal_error",
						Message: "internal server error",
					}})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one structured line per request. The websocket
// endpoint is skipped; its sessions are long-lived and logged by pkg/ws.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				logger.Component("api"),
			)
		})
	}
}
