package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domain
	"github.com/uniedit/mediagen/internal/domain/media"

	// Inbound adapters
	mediahttp "github.com/uniedit/mediagen/internal/adapter/inbound/http/media"

	// Outbound adapters
	"github.com/uniedit/mediagen/internal/adapter/outbound/httpprobe"
	"github.com/uniedit/mediagen/internal/adapter/outbound/mediaprovider"
	"github.com/uniedit/mediagen/internal/adapter/outbound/memory"
	redisadapter "github.com/uniedit/mediagen/internal/adapter/outbound/redis"
	s3adapter "github.com/uniedit/mediagen/internal/adapter/outbound/s3"

	// Ports
	"github.com/uniedit/mediagen/internal/port/outbound"

	// Modules
	mediamod "github.com/uniedit/mediagen/internal/module/media"
	"github.com/uniedit/mediagen/internal/module/media/polling"
	"github.com/uniedit/mediagen/internal/module/media/recovery"
	"github.com/uniedit/mediagen/internal/module/media/retention"

	// Infrastructure
	"github.com/uniedit/mediagen/internal/infra/cache"
	"github.com/uniedit/mediagen/internal/infra/config"
	"github.com/uniedit/mediagen/internal/infra/database"
	"github.com/uniedit/mediagen/internal/infra/events"
	"github.com/uniedit/mediagen/internal/infra/httpclient"
	"github.com/uniedit/mediagen/internal/infra/logger"
	"github.com/uniedit/mediagen/internal/infra/persistence"

	// Utils
	"github.com/uniedit/mediagen/internal/utils/metrics"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreDatabase = "database"
	StoreRedis    = "redis"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "mediagen"

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideDatabase,
	ProvideRedisClient,
	ProvideHTTPClient,
	ProvideRateLimiter,
	ProvideRegistry,
	ProvideMetrics,
	ProvideEventBus,
)

// ProvideLogger creates the zap logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return log, func() { _ = log.Sync() }, nil
}

// ProvideDatabase opens and migrates the database when the task store lives
// there, and returns nil otherwise.
func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	if !needsDatabase(cfg) {
		return nil, func() {}, nil
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database ready", zap.String("driver", cfg.Database.Driver))
	return db, func() { _ = database.Close(db) }, nil
}

func needsDatabase(cfg *config.Config) bool {
	return cfg.Store.Driver == StoreDatabase || cfg.Store.Driver == ""
}

// ProvideRedisClient creates a Redis client. Redis is optional unless it
// backs the task store.
func ProvideRedisClient(cfg *config.Config, log *zap.Logger) (goredis.UniversalClient, func(), error) {
	if cfg.Redis.Address == "" {
		if cfg.Store.Driver == StoreRedis {
			return nil, nil, fmt.Errorf("store driver %q requires redis.address", StoreRedis)
		}
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		if cfg.Store.Driver == StoreRedis {
			return nil, nil, fmt.Errorf("init redis: %w", err)
		}
		log.Warn("Redis connection failed, continuing without rate limiting", zap.Error(err))
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideHTTPClient creates a shared HTTP client with connection pooling.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ProvideRateLimiter creates a rate limiter, or nil without Redis.
func ProvideRateLimiter(redis goredis.UniversalClient) outbound.RateLimiterPort {
	if redis == nil {
		return nil
	}
	return redisadapter.NewRateLimiter(redis)
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a metrics instance.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(MetricsNamespace, reg)
}

// ProvideEventBus creates the in-process event bus.
func ProvideEventBus(log *zap.Logger) *events.Bus {
	return events.NewBus(log)
}

// ===== Outbound Adapter Providers =====

// OutboundSet provides outbound adapters.
var OutboundSet = wire.NewSet(
	ProvideTaskStore,
	ProvideGallery,
	ProvideObjectStorage,
	ProvideGateway,
	wire.Bind(new(outbound.MediaGatewayPort), new(*mediaprovider.Registry)),
	wire.Bind(new(outbound.MediaGatewayStatusPort), new(*mediaprovider.Registry)),
	ProvideURLValidator,
	wire.Bind(new(outbound.MediaURLValidatorPort), new(*httpprobe.Validator)),
)

// ProvideTaskStore selects the task store backend.
func ProvideTaskStore(cfg *config.Config, db *gorm.DB, redis goredis.UniversalClient) (outbound.MediaTaskStorePort, error) {
	switch cfg.Store.Driver {
	case StoreMemory:
		return memory.NewTaskStore(), nil
	case StoreRedis:
		return redisadapter.NewMediaTaskStoreAdapter(redis), nil
	case StoreDatabase, "":
		return persistence.NewMediaTaskRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// ProvideGallery returns the gallery backend, or nil when disabled.
func ProvideGallery(cfg *config.Config, db *gorm.DB) outbound.MediaGalleryPort {
	if !cfg.Gallery.Enabled {
		return nil
	}
	if db == nil {
		return memory.NewGallery()
	}
	return persistence.NewGalleryRepository(db)
}

// ProvideObjectStorage creates object storage for vendors that return bytes,
// or nil when unconfigured.
func ProvideObjectStorage(cfg *config.Config, log *zap.Logger) (outbound.ObjectStoragePort, error) {
	s3cfg := &s3adapter.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		PublicURL:       cfg.Storage.PublicURL,
		PresignExpiry:   cfg.Storage.PresignExpiry,
	}
	if !s3cfg.Enabled() {
		log.Info("object storage not configured, audio generation disabled")
		return nil, nil
	}
	storage, err := s3adapter.NewMediaStorage(s3cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return storage, nil
}

// ProvideGateway registers every vendor that has credentials.
func ProvideGateway(
	cfg *config.Config,
	hc *http.Client,
	storage outbound.ObjectStoragePort,
	m *metrics.Metrics,
	log *zap.Logger,
) *mediaprovider.Registry {
	registry := mediaprovider.NewRegistry(mediaprovider.BreakerConfig{
		FailureThreshold:    cfg.Breaker.FailureThreshold,
		Timeout:             cfg.Breaker.Timeout,
		Interval:            cfg.Breaker.Interval,
		MaxHalfOpenRequests: cfg.Breaker.MaxHalfOpenRequests,
	}, m, log)

	for name, pc := range cfg.Providers {
		vc := mediaprovider.VendorConfig{
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Models:  pc.Models,
			VoiceID: pc.VoiceID,
		}
		if !vc.Enabled() {
			log.Debug("vendor disabled, no api key", zap.String("vendor", name))
			continue
		}

		var vendor outbound.MediaVendorPort
		switch strings.ToLower(name) {
		case "openai":
			vendor = mediaprovider.NewOpenAIAdapter(hc, vc)
		case "luma":
			vendor = mediaprovider.NewLumaAdapter(hc, vc)
		case "piapi":
			vendor = mediaprovider.NewPiAPIAdapter(hc, vc)
		case "elevenlabs":
			vendor = mediaprovider.NewElevenLabsAdapter(hc, vc, storage)
		default:
			log.Warn("unknown vendor in configuration", zap.String("vendor", name))
			continue
		}
		registry.Register(vendor)
	}
	return registry
}

// ProvideURLValidator creates the URL prober used by recovery.
func ProvideURLValidator(cfg *config.Config, hc *http.Client, log *zap.Logger) *httpprobe.Validator {
	return httpprobe.NewValidator(hc, httpprobe.Config{
		Timeout:           cfg.Recovery.ProbeTimeout,
		CacheTTL:          cfg.Recovery.CacheTTL,
		StrictContentType: cfg.Recovery.StrictContentType,
	}, log)
}

// ===== Module Providers =====

// MediaModuleSet provides the media use cases.
var MediaModuleSet = wire.NewSet(
	ProvideRecoveryStrategy,
	ProvideController,
	ProvideService,
	ProvideRetentionJob,
)

// ProvideRecoveryStrategy creates the URL recovery strategy.
func ProvideRecoveryStrategy(
	cfg *config.Config,
	validator outbound.MediaURLValidatorPort,
	m *metrics.Metrics,
	log *zap.Logger,
) *recovery.Strategy {
	return recovery.NewStrategy(validator, TemplateCandidates(cfg.Recovery.Templates), m, log)
}

// TemplateCandidates converts configured URL templates.
func TemplateCandidates(templates []config.TemplateConfig) []recovery.TemplateCandidate {
	out := make([]recovery.TemplateCandidate, 0, len(templates))
	for _, t := range templates {
		if t.Template == "" {
			continue
		}
		types := make([]media.MediaType, 0, len(t.MediaTypes))
		for _, mt := range t.MediaTypes {
			types = append(types, media.MediaType(strings.ToLower(mt)))
		}
		out = append(out, recovery.TemplateCandidate{
			Name:       t.Name,
			Template:   t.Template,
			MediaTypes: types,
		})
	}
	return out
}

// ProvideController creates the polling controller. The cleanup stops every
// poll loop.
func ProvideController(
	cfg *config.Config,
	store outbound.MediaTaskStorePort,
	gateway outbound.MediaGatewayPort,
	strategy *recovery.Strategy,
	bus *events.Bus,
	m *metrics.Metrics,
	log *zap.Logger,
) (*polling.Controller, func()) {
	controller := polling.NewController(store, gateway, strategy, bus, m, log, &polling.Config{
		PollInterval:         cfg.Polling.Interval,
		Ceiling:              cfg.Polling.Ceiling,
		RecoveryInterval:     cfg.Polling.RecoveryInterval,
		MaxRecoveryAttempts:  cfg.Polling.MaxRecoveryAttempts,
		RequestTimeout:       cfg.Polling.RequestTimeout,
		RetryMaxTries:        cfg.Polling.RetryMaxTries,
		RetryInitialDelay:    cfg.Polling.RetryInitialDelay,
		RetryMaxDelay:        cfg.Polling.RetryMaxDelay,
		MaxConsecutiveErrors: cfg.Polling.MaxConsecutiveErrors,
	})
	return controller, controller.Stop
}

// ProvideService creates the media service facade and hooks gallery
// recording and the failure log onto the event bus.
func ProvideService(
	controller *polling.Controller,
	store outbound.MediaTaskStorePort,
	strategy *recovery.Strategy,
	gallery outbound.MediaGalleryPort,
	providers outbound.MediaGatewayStatusPort,
	bus *events.Bus,
	log *zap.Logger,
) *mediamod.Service {
	if gallery != nil {
		bus.Register(mediamod.NewGalleryRecorder(gallery, log))
	}
	mediamod.LogUnsuccessful(bus, log)
	return mediamod.NewService(controller, store, strategy, gallery, providers, log)
}

// ProvideRetentionJob creates the terminal task eviction job.
func ProvideRetentionJob(cfg *config.Config, store outbound.MediaTaskStorePort, log *zap.Logger) *retention.Job {
	return retention.NewJob(store, retention.Config{
		Retention: cfg.Store.Retention,
		Schedule:  cfg.Store.RetentionSchedule,
	}, log)
}

// ===== Inbound Adapter Providers =====

// InboundSet provides HTTP handlers.
var InboundSet = wire.NewSet(
	ProvideMediaHandler,
	ProvideWebhookHandler,
)

// ProvideMediaHandler creates the media HTTP handler.
func ProvideMediaHandler(service *mediamod.Service, log *zap.Logger) *mediahttp.Handler {
	return mediahttp.NewHandler(service, log)
}

// ProvideWebhookHandler creates the "media ready" webhook handler.
func ProvideWebhookHandler(cfg *config.Config, controller *polling.Controller, log *zap.Logger) *mediahttp.WebhookHandler {
	return mediahttp.NewWebhookHandler(controller, cfg.Auth.WebhookSecret, log)
}

// AppSet is the complete provider set.
var AppSet = wire.NewSet(
	InfraSet,
	OutboundSet,
	MediaModuleSet,
	InboundSet,
)
