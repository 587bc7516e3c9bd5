package media

import (
	"time"

	"github.com/uniedit/mediagen/internal/domain/media"
)

// GenerateInput represents a generation request.
type GenerateInput struct {
	Prompt       string         `json:"prompt"`
	MediaType    string         `json:"media_type" binding:"required"`
	Model        string         `json:"model" binding:"required"`
	ReferenceURL string         `json:"reference_url,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

// TaskOutput represents a task in API responses.
type TaskOutput struct {
	ID               string    `json:"id"`
	MediaType        string    `json:"media_type"`
	Model            string    `json:"model"`
	Prompt           string    `json:"prompt"`
	ReferenceURL     string    `json:"reference_url,omitempty"`
	Status           string    `json:"status"`
	Progress         int       `json:"progress"`
	MediaURL         string    `json:"media_url,omitempty"`
	Error            string    `json:"error,omitempty"`
	TimedOut         bool      `json:"timed_out"`
	AutoPolling      bool      `json:"auto_polling"`
	RecoveryAttempts int       `json:"recovery_attempts"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewTaskOutput converts a task for output.
func NewTaskOutput(t *media.Task) *TaskOutput {
	return &TaskOutput{
		ID:               t.ID(),
		MediaType:        t.MediaType().String(),
		Model:            t.Model(),
		Prompt:           t.Prompt(),
		ReferenceURL:     t.ReferenceURL(),
		Status:           t.Status().String(),
		Progress:         t.Progress(),
		MediaURL:         t.MediaURL(),
		Error:            t.ErrMessage(),
		TimedOut:         t.TimedOut(),
		AutoPolling:      t.AutoPolling(),
		RecoveryAttempts: t.RecoveryAttempts(),
		CreatedAt:        t.CreatedAt(),
		UpdatedAt:        t.UpdatedAt(),
	}
}

// IsTerminal reports whether the task reached a terminal status.
func (o *TaskOutput) IsTerminal() bool {
	return media.TaskStatus(o.Status).IsTerminal()
}

// RecoverURLInput is the body of a recover-by-URL request.
type RecoverURLInput struct {
	URL string `json:"url" binding:"required"`
}

// RecoveryOutput reports a recovery attempt.
type RecoveryOutput struct {
	Success bool        `json:"success"`
	URL     string      `json:"url,omitempty"`
	Tried   []string    `json:"tried"`
	Message string      `json:"message,omitempty"`
	Task    *TaskOutput `json:"task"`
}

// GalleryItemOutput represents a gallery item in API responses.
type GalleryItemOutput struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	MediaType string    `json:"media_type"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// NewGalleryItemOutput converts a gallery item for output.
func NewGalleryItemOutput(item *media.GalleryItem) *GalleryItemOutput {
	return &GalleryItemOutput{
		ID:        item.ID,
		TaskID:    item.TaskID,
		MediaType: item.MediaType.String(),
		Model:     item.Model,
		Prompt:    item.Prompt,
		URL:       item.URL,
		CreatedAt: item.CreatedAt,
	}
}
