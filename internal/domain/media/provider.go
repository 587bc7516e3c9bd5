// Package media contains the domain model of asynchronous media generation.
package media

import "time"

// SubmitRequest is what a provider needs to start a generation.
type SubmitRequest struct {
	MediaType    MediaType
	Model        string
	Prompt       string
	ReferenceURL string
	Params       map[string]any
}

// Submission is a provider's answer to a submit call. MediaURL is set by
// providers that generate synchronously.
type Submission struct {
	TaskID   string
	Status   TaskStatus
	MediaURL string
}

// PollResult is a provider's answer to a status request.
type PollResult struct {
	Status   TaskStatus
	Progress *int
	MediaURL string
	Error    string
}

// Progress returns a pointer to p for building PollResults.
func Progress(p int) *int {
	return &p
}

// ReadyEvent is an out-of-band "media ready" push for a task.
type ReadyEvent struct {
	TaskID   string `json:"task_id"`
	MediaURL string `json:"media_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PollResult converts the event into an equivalent poll response.
func (e ReadyEvent) PollResult() PollResult {
	if e.Error != "" {
		return PollResult{Status: TaskStatusFailed, Error: e.Error}
	}
	return PollResult{Status: TaskStatusCompleted, MediaURL: e.MediaURL}
}

// GalleryItem is a finished artifact shown in an owner's gallery.
type GalleryItem struct {
	ID        string
	OwnerID   string
	TaskID    string
	MediaType MediaType
	Model     string
	Prompt    string
	URL       string
	CreatedAt time.Time
}
