package events

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBus_Publish(t *testing.T) {
	t.Run("dispatches to handlers of the event type", func(t *testing.T) {
		bus := NewBus(nil)
		var got []string
		bus.Subscribe(func(e Event) error {
			got = append(got, e.AggregateID())
			return nil
		}, MediaTaskCompletedType)

		bus.Publish(NewMediaTaskFinishedEvent("task-1", "owner", "video", "ray-2", "a cat", "completed", "https://x/v.mp4", ""))
		bus.Publish(NewMediaTaskFinishedEvent("task-2", "owner", "video", "ray-2", "a cat", "failed", "", "boom"))

		assert.Equal(t, []string{"task-1"}, got)
	})

	t.Run("isolates failing and panicking handlers", func(t *testing.T) {
		bus := NewBus(nil)
		calls := 0
		bus.Subscribe(func(Event) error { return errors.New("boom") }, MediaTaskFailedType)
		bus.Subscribe(func(Event) error { panic("bad handler") }, MediaTaskFailedType)
		bus.Subscribe(func(Event) error { calls++; return nil }, MediaTaskFailedType)

		assert.NotPanics(t, func() {
			bus.Publish(NewMediaTaskFinishedEvent("task-3", "", "image", "m", "", "failed", "", "x"))
		})
		assert.Equal(t, 1, calls)
	})
}

func TestNewMediaTaskFinishedEvent(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"completed", MediaTaskCompletedType},
		{"failed", MediaTaskFailedType},
		{"canceled", MediaTaskCanceledType},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			e := NewMediaTaskFinishedEvent("id", "", "audio", "m", "", tt.status, "", "")
			assert.Equal(t, tt.expected, e.EventType())
			assert.NotEqual(t, uuid.Nil, e.EventID())
			assert.False(t, e.OccurredAt().IsZero())
			assert.Equal(t, "id", e.AggregateID())
		})
	}
}
