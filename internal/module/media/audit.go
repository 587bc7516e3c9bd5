package media

import (
	"errors"

	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/infra/events"
)

// LogUnsuccessful logs every task that ends failed or canceled.
func LogUnsuccessful(bus *events.Bus, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")

	bus.Subscribe(func(event events.Event) error {
		e, ok := event.(*events.MediaTaskFinishedEvent)
		if !ok {
			return errors.New("unexpected event payload")
		}
		logger.Info("task ended without media",
			zap.String("task_id", e.TaskID),
			zap.String("owner_id", e.OwnerID),
			zap.String("model", e.Model),
			zap.String("status", e.Status),
			zap.String("error", e.Error))
		return nil
	}, events.MediaTaskFailedType, events.MediaTaskCanceledType)
}
