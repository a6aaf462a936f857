package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/notifyhub/pkg/analytics"
	"github.com/dmitrymomot/notifyhub/pkg/api"
	"github.com/dmitrymomot/notifyhub/pkg/config"
	"github.com/dmitrymomot/notifyhub/pkg/environment"
	"github.com/dmitrymomot/notifyhub/pkg/httpserver"
	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notify"
	"github.com/dmitrymomot/notifyhub/pkg/realtime"
	redisconn "github.com/dmitrymomot/notifyhub/pkg/redis"
	"github.com/dmitrymomot/notifyhub/pkg/ws"
)

type appConfig struct {
	ServiceName   string        `env:"SERVICE_NAME" envDefault:"notifyhub"`
	Environment   string        `env:"APP_ENV" envDefault:"development"`
	StorageDriver string        `env:"STORAGE_DRIVER" envDefault:"redis"` // redis or memory
	GlobalCap     int           `env:"STORE_GLOBAL_CAP" envDefault:"100"`
	RecipientCap  int           `env:"STORE_RECIPIENT_CAP" envDefault:"50"`
	RecipientTTL  time.Duration `env:"STORE_RECIPIENT_TTL" envDefault:"168h"`
	BufferSize    int           `env:"REALTIME_BUFFER_SIZE" envDefault:"64"`
	CORSOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","` // empty allows any origin
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	env := environment.Parse(appCfg.Environment)
	log := logger.New(
		logger.WithEnvironment(env, appCfg.ServiceName),
		logger.WithContextExtractors(environment.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	if err := run(ctx, appCfg, env, log); err != nil {
		log.Error("service exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, env environment.Environment, log *slog.Logger) error {
	store, storeHealth, err := newStore(ctx, appCfg, log)
	if err != nil {
		return err
	}

	registry := realtime.NewRegistry[notify.Event](appCfg.BufferSize,
		realtime.WithRegistryLogger[notify.Event](log))
	defer registry.Close()
	go func() {
		// Drop websocket sessions on shutdown so the HTTP listener can
		// drain within its grace period.
		<-ctx.Done()
		registry.Close()
	}()
	broadcaster := realtime.NewBroadcaster(registry,
		realtime.WithBroadcasterLogger[notify.Event](log))

	svc := notify.NewService(store, notify.NewStats(store), broadcaster,
		notify.WithServiceLogger(log))

	var trackerCfg analytics.Config
	config.MustLoad(&trackerCfg)
	tracker := analytics.New(trackerCfg, analytics.WithTrackerLogger(log))
	defer tracker.Close()
	if tracker.Enabled() {
		log.Info("analytics tracking enabled")
	}

	wsHandler := ws.NewHandler(registry, ws.WithHandlerLogger(log))

	handler := api.NewHandler(svc,
		api.WithLogger(log),
		api.WithTracker(tracker),
	)
	router := api.NewRouter(handler, api.RouterConfig{
		WebSocket:      wsHandler,
		Health:         httpserver.HealthCheckHandler(ctx, log, storeHealth),
		Logger:         log,
		AllowedOrigins: appCfg.CORSOrigins,
	})

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("notification service started",
				slog.String("addr", httpCfg.Addr),
				slog.String("environment", env.String()),
				slog.String("storage", appCfg.StorageDriver),
			)
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("notification service stopped")
		}),
	)

	return srv.Run(ctx, environment.Middleware(env)(router))
}

// newStore builds the persistence layer for the configured driver and
// returns it along with its readiness probe.
func newStore(ctx context.Context, appCfg appConfig, log *slog.Logger) (notify.Store, func(context.Context) error, error) {
	switch appCfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage, notifications will not survive restarts")
		store := notify.NewMemoryStore(
			notify.WithGlobalCap(appCfg.GlobalCap),
			notify.WithRecipientCap(appCfg.RecipientCap),
			notify.WithRecipientTTL(appCfg.RecipientTTL),
		)
		return store, store.Healthcheck, nil
	default:
		var redisCfg redisconn.Config
		config.MustLoad(&redisCfg)
		client, err := redisconn.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		store := notify.NewRedisStore(client,
			notify.WithRedisGlobalCap(appCfg.GlobalCap),
			notify.WithRedisRecipientCap(appCfg.RecipientCap),
			notify.WithRedisRecipientTTL(appCfg.RecipientTTL),
		)
		return store, redisconn.Healthcheck(client), nil
	}
}
