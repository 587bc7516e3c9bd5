package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresConfig configures the LISTEN subscriber.
type PostgresConfig struct {
	DSN                  string
	Channel              string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
}

// PostgresListener receives ready events published with
// NOTIFY media_ready, '{"task_id": ...}'.
type PostgresListener struct {
	config   PostgresConfig
	notifier Notifier
	logger   *zap.Logger
}

// NewPostgresListener creates a Postgres LISTEN subscriber.
func NewPostgresListener(config PostgresConfig, notifier Notifier, logger *zap.Logger) *PostgresListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Channel == "" {
		config.Channel = "media_ready"
	}
	if config.MinReconnectInterval <= 0 {
		config.MinReconnectInterval = 10 * time.Second
	}
	if config.MaxReconnectInterval < config.MinReconnectInterval {
		config.MaxReconnectInterval = time.Minute
	}
	return &PostgresListener{
		config:   config,
		notifier: notifier,
		logger:   logger.Named("pglisten"),
	}
}

// Run listens until ctx is done.
func (l *PostgresListener) Run(ctx context.Context) error {
	listener := pq.NewListener(
		l.config.DSN,
		l.config.MinReconnectInterval,
		l.config.MaxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventConnected:
				l.logger.Info("listening", zap.String("channel", l.config.Channel))
			case pq.ListenerEventDisconnected:
				l.logger.Warn("listener disconnected", zap.Error(err))
			case pq.ListenerEventReconnected:
				l.logger.Info("listener reconnected")
			case pq.ListenerEventConnectionAttemptFailed:
				l.logger.Warn("listener connection attempt failed", zap.Error(err))
			}
		},
	)
	defer listener.Close()

	if err := listener.Listen(l.config.Channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.config.Channel, err)
	}

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; missed events are covered by polling
			if n == nil {
				continue
			}
			deliver(ctx, l.notifier, []byte(n.Extra), "postgres", l.logger)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				l.logger.Warn("listener ping failed", zap.Error(err))
			}
		}
	}
}
