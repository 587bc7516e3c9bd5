package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	mediahttp "github.com/uniedit/mediagen/internal/adapter/inbound/http/media"
	"github.com/uniedit/mediagen/internal/adapter/inbound/realtime"
	"github.com/uniedit/mediagen/internal/adapter/outbound/mediaprovider"
	mediamod "github.com/uniedit/mediagen/internal/module/media"
	"github.com/uniedit/mediagen/internal/module/media/polling"
	"github.com/uniedit/mediagen/internal/module/media/recovery"
	"github.com/uniedit/mediagen/internal/module/media/retention"
	"github.com/uniedit/mediagen/internal/port/outbound"

	"github.com/uniedit/mediagen/internal/infra/config"
	"github.com/uniedit/mediagen/internal/infra/events"
	apperrors "github.com/uniedit/mediagen/internal/utils/errors"
	"github.com/uniedit/mediagen/internal/utils/metrics"
	"github.com/uniedit/mediagen/internal/utils/middleware"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	Redis       goredis.UniversalClient
	HTTPClient  *http.Client
	RateLimiter outbound.RateLimiterPort
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	EventBus    *events.Bus

	// Outbound
	TaskStore outbound.MediaTaskStorePort
	Gateway   *mediaprovider.Registry

	// Media module
	Strategy   *recovery.Strategy
	Controller *polling.Controller
	Service    *mediamod.Service
	Retention  *retention.Job

	// HTTP Handlers
	MediaHandler   *mediahttp.Handler
	WebhookHandler *mediahttp.WebhookHandler
}

// App represents the application.
type App struct {
	deps       *Dependencies
	cleanup    func()
	configFile string
	router     *gin.Engine
	logger     *zap.Logger
}

// New creates a new application instance. configFile is watched for
// recovery template changes; empty disables watching.
func New(cfg *config.Config, configFile string) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dependencies: %w", err)
	}

	app := &App{
		deps:       deps,
		cleanup:    cleanup,
		configFile: configFile,
		logger:     deps.Logger,
	}
	app.router = app.setupRouter()
	return app, nil
}

// Dependencies exposes the assembled dependencies.
func (a *App) Dependencies() *Dependencies {
	return a.deps
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	cfg := a.deps.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.deps.Metrics))
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))

	r.GET("/healthz", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.deps.Registry, promhttp.HandlerOpts{})))

	a.registerRoutes(r)
	return r
}

// registerRoutes registers the API and webhook routes.
func (a *App) registerRoutes(r *gin.Engine) {
	cfg := a.deps.Config

	var verifier *middleware.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = middleware.NewJWTVerifier(cfg.Auth.JWTSecret)
	} else {
		a.logger.Warn("auth.jwt_secret is empty, API runs unauthenticated",
			zap.String("owner", cfg.Auth.AnonymousOwner))
	}

	var submitGuards []gin.HandlerFunc
	if cfg.RateLimit.Enabled && a.deps.RateLimiter != nil {
		submitGuards = append(submitGuards, middleware.RateLimit(a.deps.RateLimiter, middleware.RateLimitConfig{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		}, a.logger))
	}
	submitGuards = append(submitGuards,
		middleware.Idempotency(a.deps.Redis, middleware.DefaultIdempotencyConfig(), a.logger))

	v1 := r.Group("/api/v1")
	a.deps.MediaHandler.RegisterRoutes(v1, middleware.Auth(verifier, cfg.Auth.AnonymousOwner), submitGuards...)

	webhooks := r.Group("/webhooks")
	a.deps.WebhookHandler.RegisterRoutes(webhooks)
}

func (a *App) health(c *gin.Context) {
	failed := map[string]any{}
	if a.deps.Redis != nil {
		if err := a.deps.Redis.Ping(c.Request.Context()).Err(); err != nil {
			failed["redis"] = err.Error()
		}
	}
	if a.deps.DB != nil {
		if sqlDB, err := a.deps.DB.DB(); err == nil {
			if err := sqlDB.PingContext(c.Request.Context()); err != nil {
				failed["database"] = err.Error()
			}
		}
	}
	if len(failed) > 0 {
		apperrors.Respond(c, apperrors.ServiceUnavailable("dependencies unavailable").WithDetails(failed))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"active_tasks": a.deps.Controller.Active(),
	})
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Run serves HTTP and runs the background workers until ctx is done or one
// of them fails, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	cfg := a.deps.Config

	if _, err := a.deps.Controller.Resume(ctx); err != nil {
		a.logger.Warn("resume active tasks failed", zap.Error(err))
	}

	if err := config.Watch(a.configFile, a.logger, func(next *config.Config) {
		a.deps.Strategy.SetTemplates(TemplateCandidates(next.Recovery.Templates))
	}); err != nil {
		a.logger.Warn("config watch disabled", zap.Error(err))
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if cfg.Realtime.Postgres.Enabled {
		listener := realtime.NewPostgresListener(realtime.PostgresConfig{
			DSN:                  cfg.Database.DSN(),
			Channel:              cfg.Realtime.Postgres.Channel,
			MinReconnectInterval: cfg.Realtime.Postgres.MinReconnectInterval,
			MaxReconnectInterval: cfg.Realtime.Postgres.MaxReconnectInterval,
		}, a.deps.Controller, a.logger)
		g.Go(func() error { return listener.Run(gctx) })
	}

	if cfg.Realtime.NATS.URL != "" {
		subscriber := realtime.NewNATSSubscriber(realtime.NATSConfig{
			URL:     cfg.Realtime.NATS.URL,
			Subject: cfg.Realtime.NATS.Subject,
			Queue:   cfg.Realtime.NATS.Queue,
		}, a.deps.Controller, a.logger)
		g.Go(func() error { return subscriber.Run(gctx) })
	}

	g.Go(func() error { return a.deps.Retention.Run(gctx) })

	return g.Wait()
}

// Stop stops the application and releases resources.
func (a *App) Stop() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
