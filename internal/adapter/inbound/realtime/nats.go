package realtime

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig configures the NATS subscriber.
type NATSConfig struct {
	URL     string
	Subject string
	Queue   string
}

// NATSSubscriber receives ready events published on a NATS subject. Replicas
// share a queue group so each event is applied once.
type NATSSubscriber struct {
	config   NATSConfig
	notifier Notifier
	logger   *zap.Logger
}

// NewNATSSubscriber creates a NATS subscriber.
func NewNATSSubscriber(config NATSConfig, notifier Notifier, logger *zap.Logger) *NATSSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Subject == "" {
		config.Subject = "media.ready"
	}
	return &NATSSubscriber{
		config:   config,
		notifier: notifier,
		logger:   logger.Named("nats"),
	}
}

// Run subscribes until ctx is done.
func (s *NATSSubscriber) Run(ctx context.Context) error {
	nc, err := nats.Connect(s.config.URL,
		nats.Name("mediagen"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	sub, err := nc.QueueSubscribe(s.config.Subject, s.config.Queue, s.handler(ctx))
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", s.config.Subject, err)
	}
	s.logger.Info("subscribed",
		zap.String("subject", s.config.Subject),
		zap.String("queue", s.config.Queue))

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		s.logger.Warn("nats drain failed", zap.Error(err))
	}
	return nil
}

func (s *NATSSubscriber) handler(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		deliver(ctx, s.notifier, msg.Data, "nats", s.logger)
	}
}
