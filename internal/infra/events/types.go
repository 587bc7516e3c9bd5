package events

// Media task event type constants.
const (
	MediaTaskCompletedType = "media.task.completed"
	MediaTaskFailedType    = "media.task.failed"
	MediaTaskCanceledType  = "media.task.canceled"
)

// MediaTaskFinishedEvent is emitted once when a media task reaches a terminal
// status. Defined here to avoid cyclic imports between domain and handlers.
type MediaTaskFinishedEvent struct {
	Metadata

	TaskID    string `json:"task_id"`
	OwnerID   string `json:"owner_id"`
	MediaType string `json:"media_type"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Status    string `json:"status"`
	MediaURL  string `json:"media_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewMediaTaskFinishedEvent creates a finished event for the given status.
func NewMediaTaskFinishedEvent(taskID, ownerID, mediaType, model, prompt, status, mediaURL, errMsg string) *MediaTaskFinishedEvent {
	eventType := MediaTaskCompletedType
	switch status {
	case "failed":
		eventType = MediaTaskFailedType
	case "canceled":
		eventType = MediaTaskCanceledType
	}
	return &MediaTaskFinishedEvent{
		Metadata:  newMetadata(eventType, taskID),
		TaskID:    taskID,
		OwnerID:   ownerID,
		MediaType: mediaType,
		Model:     model,
		Prompt:    prompt,
		Status:    status,
		MediaURL:  mediaURL,
		Error:     errMsg,
	}
}
