// Package realtime ingests out-of-band "media ready" pushes and feeds them to
// the polling controller.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/domain/media"
)

// Notifier applies a ready event to its task.
type Notifier interface {
	Notify(ctx context.Context, ev media.ReadyEvent) (*media.Task, error)
}

const notifyTimeout = 10 * time.Second

// DecodeReadyEvent parses a JSON {task_id, media_url, error} payload.
func DecodeReadyEvent(payload []byte) (media.ReadyEvent, error) {
	var ev media.ReadyEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return media.ReadyEvent{}, fmt.Errorf("%w: %v", media.ErrInvalidInput, err)
	}
	ev.TaskID = strings.TrimSpace(ev.TaskID)
	ev.MediaURL = strings.TrimSpace(ev.MediaURL)
	if ev.TaskID == "" {
		return media.ReadyEvent{}, fmt.Errorf("%w: task_id is required", media.ErrInvalidInput)
	}
	if ev.MediaURL == "" && ev.Error == "" {
		return media.ReadyEvent{}, fmt.Errorf("%w: media_url or error is required", media.ErrInvalidInput)
	}
	return ev, nil
}

// deliver decodes payload and hands it to notifier. Bad payloads and unknown
// tasks are logged and dropped.
func deliver(ctx context.Context, notifier Notifier, payload []byte, source string, logger *zap.Logger) {
	ev, err := DecodeReadyEvent(payload)
	if err != nil {
		logger.Warn("dropping ready event", zap.String("source", source), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	task, err := notifier.Notify(ctx, ev)
	if err != nil {
		logger.Warn("ready event not applied",
			zap.String("source", source),
			zap.String("task_id", ev.TaskID),
			zap.Error(err))
		return
	}
	logger.Debug("ready event applied",
		zap.String("source", source),
		zap.String("task_id", ev.TaskID),
		zap.String("status", task.Status().String()))
}
