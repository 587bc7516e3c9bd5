package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/mediagen/internal/adapter/outbound/memory"
	"github.com/uniedit/mediagen/internal/domain/media"
)

func TestJob_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTaskStore()

	old := media.NewTask("old", media.MediaTypeImage, "m", "p", "", "u1", time.Now())
	require.NoError(t, store.Create(ctx, old))
	_, err := store.Update(ctx, "old", func(t *media.Task) error { return t.Complete("https://x/a.png") })
	require.NoError(t, err)

	running := media.NewTask("running", media.MediaTypeImage, "m", "p", "", "u1", time.Now())
	require.NoError(t, store.Create(ctx, running))

	job := NewJob(store, Config{Retention: time.Hour}, nil)
	job.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, media.ErrTaskNotFound)
	_, err = store.Get(ctx, "running")
	assert.NoError(t, err)
}

func TestJob_Disabled(t *testing.T) {
	job := NewJob(memory.NewTaskStore(), Config{}, nil)

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, job.Run(ctx))
}

func TestJob_InvalidSchedule(t *testing.T) {
	job := NewJob(memory.NewTaskStore(), Config{Retention: time.Hour, Schedule: "not a spec"}, nil)

	err := job.Run(context.Background())
	assert.Error(t, err)
}
