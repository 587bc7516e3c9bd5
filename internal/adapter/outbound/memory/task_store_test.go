package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/mediagen/internal/domain/media"
)

func newTask(id, owner string, createdAt time.Time) *media.Task {
	return media.NewTask(id, media.MediaTypeVideo, "luma", "a cat", "", owner, createdAt)
}

func TestTaskStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()

	require.NoError(t, s.Create(ctx, newTask("t1", "u1", time.Now())))
	assert.ErrorIs(t, s.Create(ctx, newTask("t1", "u1", time.Now())), media.ErrTaskExists)

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, media.TaskStatusPending, got.Status())

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, media.ErrTaskNotFound)
}

func TestTaskStore_UpdateIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	require.NoError(t, s.Create(ctx, newTask("t1", "u1", time.Now())))

	boom := errors.New("boom")
	_, err := s.Update(ctx, "t1", func(task *media.Task) error {
		task.MarkProcessing()
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, media.TaskStatusPending, got.Status(), "aborted update must not be written")

	got.MarkProcessing()
	again, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, media.TaskStatusPending, again.Status(), "returned tasks are copies")
}

func TestTaskStore_ConcurrentProgressIsMaxMerged(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	require.NoError(t, s.Create(ctx, newTask("t1", "u1", time.Now())))

	var wg sync.WaitGroup
	for p := 0; p <= 90; p += 10 {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			_, _ = s.Update(ctx, "t1", func(task *media.Task) error {
				task.ApplyPoll(media.PollResult{Status: media.TaskStatusProcessing, Progress: media.Progress(p)})
				return nil
			})
		}(p)
	}
	wg.Wait()

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 90, got.Progress())
}

func TestTaskStore_Lists(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.Create(ctx, newTask("a", "u1", base)))
	require.NoError(t, s.Create(ctx, newTask("b", "u1", base.Add(time.Minute))))
	require.NoError(t, s.Create(ctx, newTask("c", "u2", base.Add(2*time.Minute))))
	_, err := s.Update(ctx, "a", func(task *media.Task) error { return task.Complete("https://x/a.mp4") })
	require.NoError(t, err)

	owned, err := s.ListByOwner(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "b", owned[0].ID())

	paged, err := s.ListByOwner(ctx, "u1", 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "a", paged[0].ID())

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	n, err := s.DeleteTerminalBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, media.ErrTaskNotFound)
}

func TestGallery(t *testing.T) {
	ctx := context.Background()
	g := NewGallery()
	base := time.Now()

	require.NoError(t, g.Create(ctx, &media.GalleryItem{ID: "1", OwnerID: "u1", TaskID: "a", URL: "https://x/a", CreatedAt: base}))
	require.NoError(t, g.Create(ctx, &media.GalleryItem{ID: "2", OwnerID: "u1", TaskID: "b", URL: "https://x/b", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, g.Create(ctx, &media.GalleryItem{ID: "3", OwnerID: "u2", TaskID: "c", URL: "https://x/c", CreatedAt: base}))
	// Same task again is ignored
	require.NoError(t, g.Create(ctx, &media.GalleryItem{ID: "4", OwnerID: "u1", TaskID: "a", URL: "https://x/other", CreatedAt: base}))

	items, err := g.ListByOwner(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].TaskID)
	assert.Equal(t, "https://x/a", items[1].URL)
}
