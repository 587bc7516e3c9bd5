package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/infra/persistence/entity"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// MediaTaskRepository implements MediaTaskStorePort on GORM. Updates lock the
// row for the duration of the read-modify-write.
type MediaTaskRepository struct {
	db *gorm.DB
}

// NewMediaTaskRepository creates a new media task repository.
func NewMediaTaskRepository(db *gorm.DB) *MediaTaskRepository {
	return &MediaTaskRepository{db: db}
}

var _ outbound.MediaTaskStorePort = (*MediaTaskRepository)(nil)

// Create creates a new task.
func (r *MediaTaskRepository) Create(ctx context.Context, task *media.Task) error {
	e := entity.FromDomainMediaTask(task)
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if isDuplicateKey(err) {
			return media.ErrTaskExists
		}
		return fmt.Errorf("create media task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID.
func (r *MediaTaskRepository) Get(ctx context.Context, id string) (*media.Task, error) {
	var e entity.MediaTaskEntity
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, media.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get media task: %w", err)
	}
	return e.ToDomain(), nil
}

// Update performs a locked read-modify-write of one task.
func (r *MediaTaskRepository) Update(ctx context.Context, id string, mutate func(*media.Task) error) (*media.Task, error) {
	var out *media.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e entity.MediaTaskEntity
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return media.ErrTaskNotFound
			}
			return fmt.Errorf("lock media task: %w", err)
		}

		task := e.ToDomain()
		if err := mutate(task); err != nil {
			return err
		}

		if err := tx.Save(entity.FromDomainMediaTask(task)).Error; err != nil {
			return fmt.Errorf("save media task: %w", err)
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByOwner lists tasks by owner, newest first.
func (r *MediaTaskRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*media.Task, error) {
	var entities []entity.MediaTaskEntity
	q := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list media tasks: %w", err)
	}
	return toDomainTasks(entities), nil
}

// ListActive lists non-terminal tasks that still poll automatically.
func (r *MediaTaskRepository) ListActive(ctx context.Context) ([]*media.Task, error) {
	var entities []entity.MediaTaskEntity
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{media.TaskStatusPending.String(), media.TaskStatusProcessing.String()}).
		Where("auto_polling = ?", true).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list active media tasks: %w", err)
	}
	return toDomainTasks(entities), nil
}

// DeleteTerminalBefore deletes terminal tasks last updated before cutoff.
func (r *MediaTaskRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			media.TaskStatusCompleted.String(),
			media.TaskStatusFailed.String(),
			media.TaskStatusCanceled.String(),
		}).
		Where("updated_at < ?", cutoff).
		Delete(&entity.MediaTaskEntity{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete terminal media tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func toDomainTasks(entities []entity.MediaTaskEntity) []*media.Task {
	tasks := make([]*media.Task, len(entities))
	for i := range entities {
		tasks[i] = entities[i].ToDomain()
	}
	return tasks
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// --- Gallery ---

// GalleryRepository implements MediaGalleryPort.
type GalleryRepository struct {
	db *gorm.DB
}

// NewGalleryRepository creates a new gallery repository.
func NewGalleryRepository(db *gorm.DB) *GalleryRepository {
	return &GalleryRepository{db: db}
}

var _ outbound.MediaGalleryPort = (*GalleryRepository)(nil)

// Create stores a gallery item. Storing the same task twice is a no-op.
func (r *GalleryRepository) Create(ctx context.Context, item *media.GalleryItem) error {
	e := entity.FromDomainGalleryItem(item)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "task_id"}}, DoNothing: true}).
		Create(e).Error
	if err != nil {
		return fmt.Errorf("create gallery item: %w", err)
	}
	item.ID = e.ID.String()
	return nil
}

// ListByOwner lists an owner's items, newest first.
func (r *GalleryRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*media.GalleryItem, error) {
	var entities []entity.GalleryItemEntity
	q := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list gallery items: %w", err)
	}

	items := make([]*media.GalleryItem, len(entities))
	for i := range entities {
		items[i] = entities[i].ToDomain()
	}
	return items, nil
}
