// Package memory provides a process-local task store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// TaskStore implements MediaTaskStorePort on a mutex-guarded map. It is used
// for single-node deployments and tests.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*media.Task
}

// NewTaskStore creates an empty task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*media.Task)}
}

func (s *TaskStore) Create(_ context.Context, task *media.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID()]; ok {
		return media.ErrTaskExists
	}
	s.tasks[task.ID()] = task.Clone()
	return nil
}

func (s *TaskStore) Get(_ context.Context, id string) (*media.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, media.ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (s *TaskStore) Update(_ context.Context, id string, mutate func(*media.Task) error) (*media.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tasks[id]
	if !ok {
		return nil, media.ErrTaskNotFound
	}
	working := stored.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	s.tasks[id] = working
	return working.Clone(), nil
}

func (s *TaskStore) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]*media.Task, error) {
	s.mu.Lock()
	var out []*media.Task
	for _, task := range s.tasks {
		if task.BelongsTo(ownerID) {
			out = append(out, task.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() > out[j].ID()
		}
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return page(out, limit, offset), nil
}

func (s *TaskStore) ListActive(_ context.Context) ([]*media.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*media.Task
	for _, task := range s.tasks {
		if !task.IsTerminal() && task.AutoPolling() {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

func (s *TaskStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, task := range s.tasks {
		if task.IsTerminal() && task.UpdatedAt().Before(cutoff) {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ outbound.MediaTaskStorePort = (*TaskStore)(nil)
