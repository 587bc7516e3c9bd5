package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of environment overrides, e.g. MEDIAGEN_SERVER_ADDRESS.
const EnvPrefix = "MEDIAGEN"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Database   DatabaseConfig            `mapstructure:"database"`
	Redis      RedisConfig               `mapstructure:"redis"`
	HTTPClient HTTPClientConfig          `mapstructure:"http_client"`
	RateLimit  RateLimitConfig           `mapstructure:"rate_limit"`
	Log        LogConfig                 `mapstructure:"log"`
	Auth       AuthConfig                `mapstructure:"auth"`
	Store      StoreConfig               `mapstructure:"store"`
	Polling    PollingConfig             `mapstructure:"polling"`
	Recovery   RecoveryConfig            `mapstructure:"recovery"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Breaker    BreakerConfig             `mapstructure:"breaker"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Realtime   RealtimeConfig            `mapstructure:"realtime"`
	Gallery    GalleryConfig             `mapstructure:"gallery"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"` // sqlite file
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	// Keep-alive settings
	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// RateLimitConfig limits how often an owner may start generations.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, console
	Output     string `mapstructure:"output"` // stdout, file
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// AuthConfig holds API authentication configuration. An empty JWTSecret
// disables authentication and every request runs as AnonymousOwner.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	AnonymousOwner string `mapstructure:"anonymous_owner"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Driver            string        `mapstructure:"driver"` // memory, database, redis
	Retention         time.Duration `mapstructure:"retention"`
	RetentionSchedule string        `mapstructure:"retention_schedule"`
}

// PollingConfig holds status polling configuration.
type PollingConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	Ceiling              time.Duration `mapstructure:"ceiling"`
	RecoveryInterval     time.Duration `mapstructure:"recovery_interval"`
	MaxRecoveryAttempts  int           `mapstructure:"max_recovery_attempts"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	RetryMaxTries        uint          `mapstructure:"retry_max_tries"`
	RetryInitialDelay    time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay        time.Duration `mapstructure:"retry_max_delay"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
}

// RecoveryConfig holds URL recovery configuration.
type RecoveryConfig struct {
	ProbeTimeout      time.Duration    `mapstructure:"probe_timeout"`
	CacheTTL          time.Duration    `mapstructure:"cache_ttl"`
	StrictContentType bool             `mapstructure:"strict_content_type"`
	Templates         []TemplateConfig `mapstructure:"templates"`
}

// TemplateConfig is one candidate URL pattern. Template may contain
// {task_id} and {ext}.
type TemplateConfig struct {
	Name       string   `mapstructure:"name"`
	Template   string   `mapstructure:"template"`
	MediaTypes []string `mapstructure:"media_types"`
}

// ProviderConfig holds one vendor's credentials and model catalog.
type ProviderConfig struct {
	BaseURL string              `mapstructure:"base_url"`
	APIKey  string              `mapstructure:"api_key"`
	Models  map[string][]string `mapstructure:"models"`
	VoiceID string              `mapstructure:"voice_id"`
}

// BreakerConfig holds per-vendor circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold    uint32        `mapstructure:"failure_threshold"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Interval            time.Duration `mapstructure:"interval"`
	MaxHalfOpenRequests uint32        `mapstructure:"max_half_open_requests"`
}

// StorageConfig holds S3-compatible object storage configuration.
type StorageConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Bucket          string        `mapstructure:"bucket"`
	PublicURL       string        `mapstructure:"public_url"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// RealtimeConfig holds the out-of-band "media ready" channels.
type RealtimeConfig struct {
	Postgres PostgresListenConfig `mapstructure:"postgres"`
	NATS     NATSConfig           `mapstructure:"nats"`
}

// PostgresListenConfig configures LISTEN/NOTIFY ingestion.
type PostgresListenConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Channel              string        `mapstructure:"channel"`
	MinReconnectInterval time.Duration `mapstructure:"min_reconnect_interval"`
	MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval"`
}

// NATSConfig configures NATS ingestion.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

// GalleryConfig toggles gallery recording.
type GalleryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from file and environment. An empty file searches
// the default locations for config.yaml.
func Load(file string) (*Config, error) {
	v, err := newViper(file)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch reloads the configuration file whenever it changes and hands the new
// configuration to fn. It does nothing when no file was found.
func Watch(file string, logger *zap.Logger, fn func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	v, err := newViper(file)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name))
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(file string) (*viper.Viper, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mediagen")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if secret := os.Getenv(EnvPrefix + "_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if secret := os.Getenv(EnvPrefix + "_WEBHOOK_SECRET"); secret != "" {
		cfg.Auth.WebhookSecret = secret
	}
	if password := os.Getenv(EnvPrefix + "_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv(EnvPrefix + "_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv(EnvPrefix + "_STORAGE_SECRET_KEY"); key != "" {
		cfg.Storage.SecretAccessKey = key
	}
	for name, p := range cfg.Providers {
		if key := os.Getenv(EnvPrefix + "_" + strings.ToUpper(name) + "_API_KEY"); key != "" {
			p.APIKey = key
			cfg.Providers[name] = p
		}
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0) // SSE streams stay open
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allow_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "mediagen")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.path", "mediagen.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 30*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 120*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 30)
	v.SetDefault("rate_limit.window", time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/mediagen.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	// Auth defaults
	v.SetDefault("auth.anonymous_owner", "local")

	// Store defaults
	v.SetDefault("store.driver", "database")
	v.SetDefault("store.retention", 30*24*time.Hour)
	v.SetDefault("store.retention_schedule", "@every 1h")

	// Polling defaults
	v.SetDefault("polling.interval", 5*time.Second)
	v.SetDefault("polling.ceiling", 30*time.Minute)
	v.SetDefault("polling.recovery_interval", 15*time.Second)
	v.SetDefault("polling.max_recovery_attempts", 40)
	v.SetDefault("polling.request_timeout", 30*time.Second)
	v.SetDefault("polling.retry_max_tries", 3)
	v.SetDefault("polling.retry_initial_delay", 500*time.Millisecond)
	v.SetDefault("polling.retry_max_delay", 4*time.Second)
	v.SetDefault("polling.max_consecutive_errors", 6)

	// Recovery defaults
	v.SetDefault("recovery.probe_timeout", 10*time.Second)
	v.SetDefault("recovery.cache_ttl", 10*time.Minute)
	v.SetDefault("recovery.strict_content_type", false)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.timeout", 60*time.Second)
	v.SetDefault("breaker.interval", 0)
	v.SetDefault("breaker.max_half_open_requests", 1)

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.presign_expiry", 7*24*time.Hour)

	// Realtime defaults
	v.SetDefault("realtime.postgres.enabled", false)
	v.SetDefault("realtime.postgres.channel", "media_ready")
	v.SetDefault("realtime.postgres.min_reconnect_interval", 10*time.Second)
	v.SetDefault("realtime.postgres.max_reconnect_interval", time.Minute)
	v.SetDefault("realtime.nats.subject", "media.ready")
	v.SetDefault("realtime.nats.queue", "mediagen")

	// Gallery defaults
	v.SetDefault("gallery.enabled", true)
}
