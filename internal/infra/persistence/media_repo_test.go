package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/infra/persistence/entity"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entity.All()...))
	return db
}

func TestMediaTaskRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaTaskRepository(setupDB(t))
	created := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

	task := media.NewTask("gen-1", media.MediaTypeVideo, "ray-2", "a cat", "https://x/ref.png", "u1", created)
	require.NoError(t, repo.Create(ctx, task))
	assert.ErrorIs(t, repo.Create(ctx, task), media.ErrTaskExists)

	got, err := repo.Get(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, "ray-2", got.Model())
	assert.Equal(t, "https://x/ref.png", got.ReferenceURL())
	assert.True(t, got.AutoPolling())

	updated, err := repo.Update(ctx, "gen-1", func(t *media.Task) error {
		t.ApplyPoll(media.PollResult{Status: media.TaskStatusProcessing, Progress: media.Progress(40)})
		t.MarkTimedOut()
		t.RecordRecoveryAttempt(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Progress())

	got, err = repo.Get(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, media.TaskStatusProcessing, got.Status())
	assert.True(t, got.TimedOut())
	assert.False(t, got.AutoPolling())
	assert.Equal(t, 1, got.RecoveryAttempts())

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, media.ErrTaskNotFound)
	_, err = repo.Update(ctx, "missing", func(*media.Task) error { return nil })
	assert.ErrorIs(t, err, media.ErrTaskNotFound)
}

func TestMediaTaskRepository_UpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaTaskRepository(setupDB(t))
	require.NoError(t, repo.Create(ctx, media.NewTask("gen-1", media.MediaTypeVideo, "ray-2", "a cat", "", "u1", time.Now())))

	_, err := repo.Update(ctx, "gen-1", func(task *media.Task) error {
		if err := task.Cancel(); err != nil {
			return err
		}
		return task.Cancel()
	})
	assert.ErrorIs(t, err, media.ErrTaskTerminal)

	got, err := repo.Get(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, media.TaskStatusPending, got.Status())
}

func TestMediaTaskRepository_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaTaskRepository(setupDB(t))
	require.NoError(t, repo.Create(ctx, media.NewTask("gen-1", media.MediaTypeVideo, "ray-2", "a cat", "", "u1", time.Now())))

	var wg sync.WaitGroup
	for p := 10; p <= 80; p += 10 {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "gen-1", func(t *media.Task) error {
				t.ApplyPoll(media.PollResult{Status: media.TaskStatusProcessing, Progress: media.Progress(p)})
				return nil
			})
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress())
}

func TestMediaTaskRepository_ListsAndRetention(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaTaskRepository(setupDB(t))
	base := time.Now().Add(-48 * time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		owner := "u1"
		if id == "c" {
			owner = "u2"
		}
		require.NoError(t, repo.Create(ctx, media.NewTask(id, media.MediaTypeImage, "m", "p", "", owner, base.Add(time.Duration(i)*time.Minute))))
	}
	_, err := repo.Update(ctx, "a", func(t *media.Task) error { return t.Complete("https://x/a.png") })
	require.NoError(t, err)
	_, err = repo.Update(ctx, "b", func(t *media.Task) error {
		t.MarkTimedOut()
		t.RecordRecoveryAttempt(1)
		return nil
	})
	require.NoError(t, err)

	owned, err := repo.ListByOwner(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "b", owned[0].ID())

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "c", active[0].ID())

	n, err := repo.DeleteTerminalBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, media.ErrTaskNotFound)
}

func TestGalleryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGalleryRepository(setupDB(t))
	now := time.Now()

	first := &media.GalleryItem{OwnerID: "u1", TaskID: "a", MediaType: media.MediaTypeImage, URL: "https://x/a.png", CreatedAt: now.Add(-time.Minute)}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotEmpty(t, first.ID)
	require.NoError(t, repo.Create(ctx, &media.GalleryItem{OwnerID: "u1", TaskID: "a", MediaType: media.MediaTypeImage, URL: "https://x/a.png", CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &media.GalleryItem{OwnerID: "u1", TaskID: "b", MediaType: media.MediaTypeVideo, URL: "https://x/b.mp4", CreatedAt: now}))

	items, err := repo.ListByOwner(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2, "duplicate task ids are ignored")
	assert.Equal(t, "b", items[0].TaskID)
}
