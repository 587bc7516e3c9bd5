// Package retention evicts finished tasks from the task store on a schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/port/outbound"
)

// Config holds retention configuration.
type Config struct {
	// Retention is how long terminal tasks are kept. Zero disables eviction.
	Retention time.Duration
	// Schedule is a cron spec, e.g. "@every 1h" or "0 3 * * *".
	Schedule string
}

// Job deletes terminal tasks older than the configured retention.
type Job struct {
	store  outbound.MediaTaskStorePort
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewJob creates a retention job.
func NewJob(store outbound.MediaTaskStorePort, config Config, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Schedule == "" {
		config.Schedule = "@every 1h"
	}
	return &Job{
		store:  store,
		config: config,
		logger: logger.Named("retention"),
		now:    time.Now,
	}
}

// RunOnce performs one eviction pass.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	if j.config.Retention <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-j.config.Retention)
	n, err := j.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict terminal tasks: %w", err)
	}
	if n > 0 {
		j.logger.Info("evicted terminal tasks", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run schedules eviction until ctx is done.
func (j *Job) Run(ctx context.Context) error {
	if j.config.Retention <= 0 {
		j.logger.Info("retention disabled")
		<-ctx.Done()
		return nil
	}

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	_, err := c.AddFunc(j.config.Schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Warn("retention pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retention %q: %w", j.config.Schedule, err)
	}

	c.Start()
	j.logger.Info("retention scheduled",
		zap.String("schedule", j.config.Schedule),
		zap.Duration("retention", j.config.Retention),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
