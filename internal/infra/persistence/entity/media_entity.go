package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/uniedit/mediagen/internal/domain/media"
)

// MediaTaskEntity is the GORM entity for media tasks. The primary key is the
// provider task id.
type MediaTaskEntity struct {
	ID               string    `gorm:"type:varchar(191);primaryKey"`
	MediaType        string    `gorm:"type:varchar(16);not null"`
	Model            string    `gorm:"type:varchar(128);not null"`
	Prompt           string    `gorm:"type:text"`
	ReferenceURL     string    `gorm:"column:reference_url;type:text"`
	OwnerID          string    `gorm:"type:varchar(191);index:idx_media_tasks_owner_created,priority:1"`
	Status           string    `gorm:"type:varchar(16);not null;default:'pending';index"`
	Progress         int       `gorm:"not null;default:0"`
	MediaURL         string    `gorm:"column:media_url;type:text"`
	ErrorMessage     string    `gorm:"column:error_message;type:text"`
	TimedOut         bool      `gorm:"not null"`
	AutoPolling      bool      `gorm:"not null;index"`
	RecoveryAttempts int       `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"index:idx_media_tasks_owner_created,priority:2"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false;index"`
}

// TableName returns the table name for MediaTaskEntity.
func (MediaTaskEntity) TableName() string {
	return "media_tasks"
}

// ToDomain converts to domain entity.
func (e *MediaTaskEntity) ToDomain() *media.Task {
	return media.ReconstructTask(
		e.ID,
		media.MediaType(e.MediaType),
		e.Model,
		e.Prompt,
		e.ReferenceURL,
		e.OwnerID,
		e.CreatedAt,
		media.TaskState{
			Status:           media.TaskStatus(e.Status),
			Progress:         e.Progress,
			MediaURL:         e.MediaURL,
			ErrMessage:       e.ErrorMessage,
			TimedOut:         e.TimedOut,
			AutoPolling:      e.AutoPolling,
			RecoveryAttempts: e.RecoveryAttempts,
			UpdatedAt:        e.UpdatedAt,
		},
	)
}

// FromDomainMediaTask converts from domain entity.
func FromDomainMediaTask(t *media.Task) *MediaTaskEntity {
	s := t.State()
	return &MediaTaskEntity{
		ID:               t.ID(),
		MediaType:        t.MediaType().String(),
		Model:            t.Model(),
		Prompt:           t.Prompt(),
		ReferenceURL:     t.ReferenceURL(),
		OwnerID:          t.OwnerID(),
		Status:           s.Status.String(),
		Progress:         s.Progress,
		MediaURL:         s.MediaURL,
		ErrorMessage:     s.ErrMessage,
		TimedOut:         s.TimedOut,
		AutoPolling:      s.AutoPolling,
		RecoveryAttempts: s.RecoveryAttempts,
		CreatedAt:        t.CreatedAt(),
		UpdatedAt:        s.UpdatedAt,
	}
}

// GalleryItemEntity is the GORM entity for gallery items.
type GalleryItemEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   string    `gorm:"type:varchar(191);index:idx_gallery_owner_created,priority:1"`
	TaskID    string    `gorm:"type:varchar(191);uniqueIndex"`
	MediaType string    `gorm:"type:varchar(16);not null"`
	Model     string    `gorm:"type:varchar(128)"`
	Prompt    string    `gorm:"type:text"`
	URL       string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_gallery_owner_created,priority:2"`
}

// TableName returns the table name for GalleryItemEntity.
func (GalleryItemEntity) TableName() string {
	return "media_gallery"
}

// ToDomain converts to domain entity.
func (e *GalleryItemEntity) ToDomain() *media.GalleryItem {
	return &media.GalleryItem{
		ID:        e.ID.String(),
		OwnerID:   e.OwnerID,
		TaskID:    e.TaskID,
		MediaType: media.MediaType(e.MediaType),
		Model:     e.Model,
		Prompt:    e.Prompt,
		URL:       e.URL,
		CreatedAt: e.CreatedAt,
	}
}

// FromDomainGalleryItem converts from domain entity. Items without a valid
// id get a new one.
func FromDomainGalleryItem(item *media.GalleryItem) *GalleryItemEntity {
	id, err := uuid.Parse(item.ID)
	if err != nil {
		id = uuid.New()
	}
	return &GalleryItemEntity{
		ID:        id,
		OwnerID:   item.OwnerID,
		TaskID:    item.TaskID,
		MediaType: item.MediaType.String(),
		Model:     item.Model,
		Prompt:    item.Prompt,
		URL:       item.URL,
		CreatedAt: item.CreatedAt,
	}
}

// All returns every entity for auto-migration.
func All() []any {
	return []any{&MediaTaskEntity{}, &GalleryItemEntity{}}
}
