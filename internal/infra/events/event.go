package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a fact published on the Bus. Events are keyed by the task they
// concern.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	// AggregateID is the id of the task the event is about.
	AggregateID() string
}

// Metadata is embedded in concrete events to satisfy Event.
type Metadata struct {
	ID        uuid.UUID `json:"event_id"`
	Type      string    `json:"event_type"`
	Timestamp time.Time `json:"occurred_at"`
	TaskKey   string    `json:"-"`
}

func newMetadata(eventType, taskID string) Metadata {
	return Metadata{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		TaskKey:   taskID,
	}
}

func (m Metadata) EventID() uuid.UUID    { return m.ID }
func (m Metadata) EventType() string     { return m.Type }
func (m Metadata) OccurredAt() time.Time { return m.Timestamp }
func (m Metadata) AggregateID() string   { return m.TaskKey }

// Handler processes the event types it lists. Handle must tolerate
// receiving the same event twice.
type Handler interface {
	Handles() []string
	Handle(event Event) error
}

type handlerFunc struct {
	eventTypes []string
	fn         func(Event) error
}

func (h handlerFunc) Handles() []string        { return h.eventTypes }
func (h handlerFunc) Handle(event Event) error { return h.fn(event) }
