package media

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/infra/events"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// GalleryRecorder adds every completed task to its owner's gallery.
type GalleryRecorder struct {
	gallery outbound.MediaGalleryPort
	timeout time.Duration
	logger  *zap.Logger
}

// NewGalleryRecorder creates a gallery recorder.
func NewGalleryRecorder(gallery outbound.MediaGalleryPort, logger *zap.Logger) *GalleryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GalleryRecorder{
		gallery: gallery,
		timeout: 10 * time.Second,
		logger:  logger.Named("gallery"),
	}
}

// Handles implements events.Handler.
func (r *GalleryRecorder) Handles() []string {
	return []string{events.MediaTaskCompletedType}
}

// Handle implements events.Handler. Recording the same task twice is a no-op.
func (r *GalleryRecorder) Handle(event events.Event) error {
	e, ok := event.(*events.MediaTaskFinishedEvent)
	if !ok {
		return errors.New("unexpected event payload")
	}
	if e.MediaURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	item := &media.GalleryItem{
		ID:        uuid.NewString(),
		OwnerID:   e.OwnerID,
		TaskID:    e.TaskID,
		MediaType: media.MediaType(e.MediaType),
		Model:     e.Model,
		Prompt:    e.Prompt,
		URL:       e.MediaURL,
		CreatedAt: e.OccurredAt(),
	}
	if err := r.gallery.Create(ctx, item); err != nil {
		return err
	}

	r.logger.Debug("gallery item recorded",
		zap.String("task_id", e.TaskID),
		zap.String("owner_id", e.OwnerID))
	return nil
}

// Compile-time interface check
var _ events.Handler = (*GalleryRecorder)(nil)
