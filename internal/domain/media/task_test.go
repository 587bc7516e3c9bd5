package media

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask() *Task {
	return NewTask("gen-1", MediaTypeVideo, "ray-2", "a cat", "", "u1", time.Now())
}

func TestTaskStatus(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
		valid    bool
	}{
		{TaskStatusPending, false, true},
		{TaskStatusProcessing, false, true},
		{TaskStatusCompleted, true, true},
		{TaskStatusFailed, true, true},
		{TaskStatusCanceled, true, true},
		{TaskStatus("queued"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.valid, tt.status.IsValid())
		})
	}
}

func TestMediaType(t *testing.T) {
	assert.True(t, MediaTypeImage.IsValid())
	assert.False(t, MediaType("3d").IsValid())
	assert.Equal(t, "mp4", MediaTypeVideo.Extension())
	assert.Equal(t, "mp3", MediaTypeAudio.Extension())
	assert.Equal(t, "png", MediaTypeImage.Extension())
	assert.Empty(t, MediaType("3d").Extension())
}

func TestNewTask(t *testing.T) {
	task := newTestTask()

	assert.Equal(t, "gen-1", task.ID())
	assert.Equal(t, TaskStatusPending, task.Status())
	assert.True(t, task.AutoPolling())
	assert.False(t, task.TimedOut())
	assert.Zero(t, task.Progress())
	assert.True(t, task.BelongsTo("u1"))
	assert.False(t, task.BelongsTo("u2"))
}

func TestTask_ApplyPoll(t *testing.T) {
	t.Run("progress only moves forward", func(t *testing.T) {
		task := newTestTask()

		assert.True(t, task.ApplyPoll(PollResult{Status: TaskStatusProcessing, Progress: Progress(40)}))
		assert.Equal(t, TaskStatusProcessing, task.Status())
		assert.Equal(t, 40, task.Progress())

		assert.False(t, task.ApplyPoll(PollResult{Status: TaskStatusProcessing, Progress: Progress(30)}))
		assert.Equal(t, 40, task.Progress())
	})

	t.Run("progress is clamped", func(t *testing.T) {
		task := newTestTask()
		task.ApplyPoll(PollResult{Status: TaskStatusProcessing, Progress: Progress(250)})
		assert.Equal(t, 100, task.Progress())
	})

	t.Run("completed with url", func(t *testing.T) {
		task := newTestTask()

		assert.True(t, task.ApplyPoll(PollResult{Status: TaskStatusCompleted, MediaURL: "https://x/v.mp4"}))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.Equal(t, "https://x/v.mp4", task.MediaURL())
		assert.Equal(t, 100, task.Progress())
	})

	t.Run("completed without url stays processing", func(t *testing.T) {
		task := newTestTask()

		task.ApplyPoll(PollResult{Status: TaskStatusCompleted})
		assert.Equal(t, TaskStatusProcessing, task.Status())
		assert.Empty(t, task.MediaURL())
	})

	t.Run("failed keeps reason", func(t *testing.T) {
		task := newTestTask()

		task.ApplyPoll(PollResult{Status: TaskStatusFailed, Error: "nsfw"})
		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.Equal(t, "nsfw", task.ErrMessage())
	})

	t.Run("failed without reason", func(t *testing.T) {
		task := newTestTask()

		task.ApplyPoll(PollResult{Status: TaskStatusFailed})
		assert.NotEmpty(t, task.ErrMessage())
	})

	t.Run("terminal tasks ignore responses", func(t *testing.T) {
		task := newTestTask()
		require.NoError(t, task.Complete("https://x/v.mp4"))

		assert.False(t, task.ApplyPoll(PollResult{Status: TaskStatusFailed, Error: "late"}))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.Equal(t, "https://x/v.mp4", task.MediaURL())
	})

	t.Run("high progress leaves timed-out mode", func(t *testing.T) {
		task := newTestTask()
		task.ApplyPoll(PollResult{Status: TaskStatusProcessing, Progress: Progress(50)})
		require.True(t, task.MarkTimedOut())
		task.RecordRecoveryAttempt(3)

		task.ApplyPoll(PollResult{Status: TaskStatusProcessing, Progress: Progress(96)})
		assert.False(t, task.TimedOut())
		assert.True(t, task.AutoPolling())
		assert.Zero(t, task.RecoveryAttempts())
	})
}

func TestTask_TerminalTransitions(t *testing.T) {
	task := newTestTask()

	assert.ErrorIs(t, task.Complete(""), ErrInvalidInput)
	require.NoError(t, task.Cancel())
	assert.Equal(t, TaskStatusCanceled, task.Status())

	assert.ErrorIs(t, task.Complete("https://x/v.mp4"), ErrTaskTerminal)
	assert.ErrorIs(t, task.Fail("boom"), ErrTaskTerminal)
	assert.ErrorIs(t, task.Cancel(), ErrTaskTerminal)
	assert.False(t, task.MarkProcessing())
}

func TestTask_TimedOutMode(t *testing.T) {
	t.Run("attempts exhaust auto polling", func(t *testing.T) {
		task := newTestTask()
		require.True(t, task.MarkTimedOut())
		assert.False(t, task.MarkTimedOut())

		assert.True(t, task.RecordRecoveryAttempt(3))
		assert.True(t, task.RecordRecoveryAttempt(3))
		assert.False(t, task.RecordRecoveryAttempt(3))
		assert.Equal(t, 3, task.RecoveryAttempts())
		assert.False(t, task.AutoPolling())

		assert.True(t, task.ResumeAutoPolling())
		assert.True(t, task.AutoPolling())
		assert.False(t, task.TimedOut())
		assert.False(t, task.ResumeAutoPolling())
	})

	t.Run("high progress is never flagged", func(t *testing.T) {
		task := newTestTask()
		task.ApplyPoll(PollResult{Status: TaskStatusProcessing, Progress: Progress(HighProgressThreshold)})

		assert.False(t, task.MarkTimedOut())
	})
}

func TestReconstructTask(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	original := NewTask("gen-9", MediaTypeAudio, "eleven", "hi", "https://ref", "u1", created)
	original.ApplyPoll(PollResult{Status: TaskStatusProcessing, Progress: Progress(20)})
	original.MarkTimedOut()

	task := ReconstructTask(original.ID(), original.MediaType(), original.Model(), original.Prompt(),
		original.ReferenceURL(), original.OwnerID(), original.CreatedAt(), original.State())

	assert.Equal(t, original.State(), task.State())
	assert.True(t, created.Equal(task.CreatedAt()))
	assert.Equal(t, "https://ref", task.ReferenceURL())

	clone := task.Clone()
	clone.Cancel()
	assert.Equal(t, TaskStatusProcessing, task.Status())
}

func TestReadyEvent_PollResult(t *testing.T) {
	res := ReadyEvent{TaskID: "t", MediaURL: "https://x"}.PollResult()
	assert.Equal(t, TaskStatusCompleted, res.Status)
	assert.Equal(t, "https://x", res.MediaURL)

	res = ReadyEvent{TaskID: "t", Error: "boom"}.PollResult()
	assert.Equal(t, TaskStatusFailed, res.Status)
	assert.Equal(t, "boom", res.Error)
}

func TestErrors(t *testing.T) {
	cause := errors.New("dial tcp")

	sub := &SubmissionError{Provider: "luma", StatusCode: 400, Reason: "bad prompt"}
	assert.Equal(t, "luma rejected submission (status 400): bad prompt", sub.Error())
	assert.True(t, IsSubmissionError(sub))

	tr := &TransportError{Provider: "luma", Op: "poll", StatusCode: 401, Auth: true, Err: cause}
	assert.Equal(t, "luma poll: status 401: dial tcp", tr.Error())
	assert.ErrorIs(t, tr, cause)
	assert.True(t, IsAuthError(tr))
	assert.False(t, IsSubmissionError(tr))
}
