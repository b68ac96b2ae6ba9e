package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/tajious/medsync/internal/api/handlers"
	"github.com/tajious/medsync/internal/api/router"
	"github.com/tajious/medsync/internal/apiclient"
	"github.com/tajious/medsync/internal/auth"
	"github.com/tajious/medsync/internal/config"
	"github.com/tajious/medsync/internal/logger"
	"github.com/tajious/medsync/internal/metrics"
	"github.com/tajious/medsync/internal/middleware"
	"github.com/tajious/medsync/internal/session"
	"github.com/tajious/medsync/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "medsync-portal"}).Error(ctx, "failed to load configuration", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "medsync-portal",
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})
	ctx = log.WithField(ctx, "environment", cfg.Server.Environment)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Session store and rate limit counters
	var (
		sessionStore   session.Store
		rateLimitStore middleware.RateLimitStore
	)
	switch cfg.Session.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		sessionStore = session.NewRedisStore(rdb, cfg.Session.TTL)
		rateLimitStore = middleware.NewRedisRateLimitStore(rdb)
	case "memory":
		sessionStore = session.NewMemoryStore(cfg.Session.TTL)
		rateLimitStore = middleware.NewMemoryRateLimitStore()
	default:
		return fmt.Errorf("unsupported session driver %q", cfg.Session.Driver)
	}

	api := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout,
		apiclient.WithMetrics(m),
		apiclient.WithScheduleControl(cfg.API.ScheduleTimeout, cfg.API.ScheduleRetries),
	)

	// Offline demo registry
	var (
		demo            *auth.DemoProvider
		registryHandler *handlers.RegistryHandler
	)
	if cfg.Auth.DemoEnabled {
		store, err := storage.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("initializing demo registry: %w", err)
		}
		defer store.Close()
		demo = auth.NewDemoProvider(store, cfg.Auth.DemoTokenTTL)
		registryHandler = handlers.NewRegistryHandler(store)
		log.Warn(log.WithField(ctx, "driver", cfg.Database.Driver), "demo login enabled; offline sessions are not verified by the API")
	}

	authService := auth.NewService(auth.Options{
		Store:                sessionStore,
		API:                  api,
		Demo:                 demo,
		Logger:               log,
		Metrics:              m,
		AccessDeniedRecovery: cfg.Auth.AccessDeniedRecovery,
		OTPTTL:               cfg.Auth.OTPTTL,
	})

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "MedSync Portal",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Middleware
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(log))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	apiRouter := router.NewRouter(
		app,
		handlers.NewAuthHandler(authService),
		handlers.NewViewHandler(authService),
		handlers.NewScheduleHandler(api, authService, log),
		registryHandler,
		middleware.NewSessionMiddleware(sessionStore, cfg.Session, log, m),
		middleware.NewRateLimiter(rateLimitStore, cfg.Server.RateLimit, log),
	)

	// Setup routes
	apiRouter.SetupRoutes()

	go func() {
		<-ctx.Done()
		log.Info(ctx, "shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error(ctx, "shutdown failed", err)
		}
	}()

	// Start server
	log.Info(log.WithField(ctx, "port", cfg.Server.Port), "server starting")
	return app.Listen(":" + cfg.Server.Port)
}
