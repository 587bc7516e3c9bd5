package media

import (
	"time"
)

// TaskStatus represents the status of a media generation task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCanceled   TaskStatus = "canceled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns whether the status is terminal.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCanceled:
		return true
	default:
		return false
	}
}

// IsValid checks if the status is known.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed, TaskStatusCanceled:
		return true
	default:
		return false
	}
}

// MediaType represents the kind of artifact a task produces.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// String returns the string representation of the media type.
func (t MediaType) String() string {
	return string(t)
}

// IsValid checks if the media type is known.
func (t MediaType) IsValid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio:
		return true
	default:
		return false
	}
}

// Extension returns the file extension usually served for the media type.
func (t MediaType) Extension() string {
	switch t {
	case MediaTypeImage:
		return "png"
	case MediaTypeVideo:
		return "mp4"
	case MediaTypeAudio:
		return "mp3"
	default:
		return ""
	}
}

// HighProgressThreshold is the progress at or above which a task is never
// considered timed out.
const HighProgressThreshold = 95

// Task represents one in-flight or finished media generation request.
type Task struct {
	id               string
	mediaType        MediaType
	model            string
	prompt           string
	referenceURL     string
	ownerID          string
	status           TaskStatus
	progress         int
	mediaURL         string
	errMessage       string
	timedOut         bool
	autoPolling      bool
	recoveryAttempts int
	createdAt        time.Time
	updatedAt        time.Time
}

// NewTask creates a pending task for a provider-assigned id.
func NewTask(id string, mediaType MediaType, model, prompt, referenceURL, ownerID string, createdAt time.Time) *Task {
	return &Task{
		id:           id,
		mediaType:    mediaType,
		model:        model,
		prompt:       prompt,
		referenceURL: referenceURL,
		ownerID:      ownerID,
		status:       TaskStatusPending,
		autoPolling:  true,
		createdAt:    createdAt,
		updatedAt:    createdAt,
	}
}

// TaskState carries the mutable fields of a persisted task.
type TaskState struct {
	Status           TaskStatus
	Progress         int
	MediaURL         string
	ErrMessage       string
	TimedOut         bool
	AutoPolling      bool
	RecoveryAttempts int
	UpdatedAt        time.Time
}

// ReconstructTask reconstructs a task from persistence.
func ReconstructTask(
	id string,
	mediaType MediaType,
	model string,
	prompt string,
	referenceURL string,
	ownerID string,
	createdAt time.Time,
	state TaskState,
) *Task {
	return &Task{
		id:               id,
		mediaType:        mediaType,
		model:            model,
		prompt:           prompt,
		referenceURL:     referenceURL,
		ownerID:          ownerID,
		status:           state.Status,
		progress:         state.Progress,
		mediaURL:         state.MediaURL,
		errMessage:       state.ErrMessage,
		timedOut:         state.TimedOut,
		autoPolling:      state.AutoPolling,
		recoveryAttempts: state.RecoveryAttempts,
		createdAt:        createdAt,
		updatedAt:        state.UpdatedAt,
	}
}

// ID returns the provider task id.
func (t *Task) ID() string { return t.id }

// MediaType returns the media type.
func (t *Task) MediaType() MediaType { return t.mediaType }

// Model returns the model identifier.
func (t *Task) Model() string { return t.model }

// Prompt returns the original prompt.
func (t *Task) Prompt() string { return t.prompt }

// ReferenceURL returns the reference media URL, if any.
func (t *Task) ReferenceURL() string { return t.referenceURL }

// OwnerID returns the owner id.
func (t *Task) OwnerID() string { return t.ownerID }

// Status returns the task status.
func (t *Task) Status() TaskStatus { return t.status }

// Progress returns the progress (0-100).
func (t *Task) Progress() int { return t.progress }

// MediaURL returns the result URL; empty unless completed.
func (t *Task) MediaURL() string { return t.mediaURL }

// ErrMessage returns the provider failure text; empty unless failed.
func (t *Task) ErrMessage() string { return t.errMessage }

// TimedOut reports whether the task passed the polling ceiling.
func (t *Task) TimedOut() bool { return t.timedOut }

// AutoPolling reports whether the scheduler still polls the task on its own.
func (t *Task) AutoPolling() bool { return t.autoPolling }

// RecoveryAttempts returns the number of attempts made in timed-out mode.
func (t *Task) RecoveryAttempts() int { return t.recoveryAttempts }

// CreatedAt returns the creation time.
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last update time.
func (t *Task) UpdatedAt() time.Time { return t.updatedAt }

// State returns the mutable fields of the task.
func (t *Task) State() TaskState {
	return TaskState{
		Status:           t.status,
		Progress:         t.progress,
		MediaURL:         t.mediaURL,
		ErrMessage:       t.errMessage,
		TimedOut:         t.timedOut,
		AutoPolling:      t.autoPolling,
		RecoveryAttempts: t.recoveryAttempts,
		UpdatedAt:        t.updatedAt,
	}
}

// Clone returns an independent copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// BelongsTo checks if the task belongs to the given owner.
func (t *Task) BelongsTo(ownerID string) bool {
	return t.ownerID == ownerID
}

// IsTerminal returns whether the task has reached a terminal state.
func (t *Task) IsTerminal() bool {
	return t.status.IsTerminal()
}

// MarkProcessing moves a pending task to processing.
func (t *Task) MarkProcessing() bool {
	if t.status != TaskStatusPending {
		return false
	}
	t.status = TaskStatusProcessing
	t.touch()
	return true
}

// ApplyPoll ingests a provider status response and reports whether anything
// changed. Responses for terminal tasks are discarded. Progress only moves
// forward. A completed response without a URL leaves the task processing.
func (t *Task) ApplyPoll(res PollResult) bool {
	if t.IsTerminal() {
		return false
	}

	changed := false
	if res.Progress != nil {
		changed = t.raiseProgress(*res.Progress) || changed
		if t.progress >= HighProgressThreshold {
			changed = t.ResumeAutoPolling() || changed
		}
	}

	switch res.Status {
	case TaskStatusCompleted:
		if res.MediaURL != "" {
			return t.Complete(res.MediaURL) == nil || changed
		}
		changed = t.MarkProcessing() || changed
	case TaskStatusFailed:
		msg := res.Error
		if msg == "" {
			msg = "provider reported failure"
		}
		return t.Fail(msg) == nil || changed
	case TaskStatusCanceled:
		return t.Cancel() == nil || changed
	default:
		changed = t.MarkProcessing() || changed
	}

	if changed {
		t.touch()
	}
	return changed
}

// Complete marks the task completed with its media URL.
func (t *Task) Complete(mediaURL string) error {
	if t.IsTerminal() {
		return ErrTaskTerminal
	}
	if mediaURL == "" {
		return ErrInvalidInput
	}
	t.status = TaskStatusCompleted
	t.mediaURL = mediaURL
	t.progress = 100
	t.errMessage = ""
	t.touch()
	return nil
}

// Fail marks the task failed with the provider's reason.
func (t *Task) Fail(message string) error {
	if t.IsTerminal() {
		return ErrTaskTerminal
	}
	t.status = TaskStatusFailed
	t.errMessage = message
	t.touch()
	return nil
}

// Cancel marks the task canceled.
func (t *Task) Cancel() error {
	if t.IsTerminal() {
		return ErrTaskTerminal
	}
	t.status = TaskStatusCanceled
	t.touch()
	return nil
}

// MarkTimedOut flags the task as past its polling ceiling. Tasks at or above
// HighProgressThreshold are never flagged.
func (t *Task) MarkTimedOut() bool {
	if t.IsTerminal() || t.timedOut || t.progress >= HighProgressThreshold {
		return false
	}
	t.timedOut = true
	t.touch()
	return true
}

// RecordRecoveryAttempt counts one timed-out attempt and switches automatic
// polling off once max attempts were made. It returns whether automatic
// polling is still enabled.
func (t *Task) RecordRecoveryAttempt(max int) bool {
	if t.IsTerminal() {
		return false
	}
	t.recoveryAttempts++
	if max > 0 && t.recoveryAttempts >= max {
		t.autoPolling = false
	}
	t.touch()
	return t.autoPolling
}

// ResumeAutoPolling leaves timed-out mode: the timeout flag and the attempt
// counter are cleared and automatic polling is re-enabled.
func (t *Task) ResumeAutoPolling() bool {
	if t.IsTerminal() || (!t.timedOut && t.autoPolling && t.recoveryAttempts == 0) {
		return false
	}
	t.timedOut = false
	t.autoPolling = true
	t.recoveryAttempts = 0
	t.touch()
	return true
}

func (t *Task) raiseProgress(progress int) bool {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress <= t.progress {
		return false
	}
	t.progress = progress
	return true
}

func (t *Task) touch() {
	t.updatedAt = time.Now()
}
