// Package media is the entry point of media generation for the inbound
// adapters. It combines the polling controller, the recovery strategy and the
// gallery behind owner-scoped operations.
package media

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/module/media/polling"
	"github.com/uniedit/mediagen/internal/module/media/recovery"
	"github.com/uniedit/mediagen/internal/port/outbound"
	"github.com/uniedit/mediagen/internal/utils/requestctx"
)

// TaskController is the part of the polling controller the service uses.
type TaskController interface {
	Start(ctx context.Context, req polling.StartRequest) (*media.Task, error)
	Get(ctx context.Context, taskID string) (*media.Task, error)
	Poll(ctx context.Context, taskID string) (*media.Task, error)
	Cancel(ctx context.Context, taskID string) (bool, error)
	CompleteRecovered(ctx context.Context, taskID, url string) (*media.Task, error)
	Subscribe(taskID string, fn func(*media.Task)) func()
}

// URLRecoverer finds media for stalled tasks.
type URLRecoverer interface {
	RecoverByTaskID(ctx context.Context, taskID string, mediaType media.MediaType) recovery.Result
	RecoverByURL(ctx context.Context, url string, mediaType media.MediaType) recovery.Result
}

// Service provides owner-scoped media generation operations.
type Service struct {
	controller TaskController
	store      outbound.MediaTaskStorePort
	recoverer  URLRecoverer
	gallery    outbound.MediaGalleryPort
	providers  outbound.MediaGatewayStatusPort
	logger     *zap.Logger
}

// NewService creates a new media service. gallery and providers may be nil.
func NewService(
	controller TaskController,
	store outbound.MediaTaskStorePort,
	recoverer URLRecoverer,
	gallery outbound.MediaGalleryPort,
	providers outbound.MediaGatewayStatusPort,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		controller: controller,
		store:      store,
		recoverer:  recoverer,
		gallery:    gallery,
		providers:  providers,
		logger:     logger.Named("media"),
	}
}

// Generate starts a generation for ownerID.
func (s *Service) Generate(ctx context.Context, ownerID string, in *GenerateInput) (*TaskOutput, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: request is required", media.ErrInvalidInput)
	}
	task, err := s.controller.Start(ctx, polling.StartRequest{
		Prompt:       in.Prompt,
		MediaType:    media.MediaType(in.MediaType),
		Model:        in.Model,
		Params:       in.Params,
		ReferenceURL: in.ReferenceURL,
		OwnerID:      ownerID,
	})
	if err != nil {
		return nil, err
	}

	requestctx.Logger(ctx, s.logger).Info("generation started",
		zap.String("task_id", task.ID()),
		zap.String("media_type", task.MediaType().String()),
		zap.String("model", task.Model()),
	)
	return NewTaskOutput(task), nil
}

// Get returns one of ownerID's tasks.
func (s *Service) Get(ctx context.Context, ownerID, taskID string) (*TaskOutput, error) {
	task, err := s.owned(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	return NewTaskOutput(task), nil
}

// List returns ownerID's tasks, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]*TaskOutput, error) {
	tasks, err := s.store.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]*TaskOutput, len(tasks))
	for i, t := range tasks {
		out[i] = NewTaskOutput(t)
	}
	return out, nil
}

// Check polls a task now.
func (s *Service) Check(ctx context.Context, ownerID, taskID string) (*TaskOutput, error) {
	if _, err := s.owned(ctx, ownerID, taskID); err != nil {
		return nil, err
	}
	task, err := s.controller.Poll(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return NewTaskOutput(task), nil
}

// Cancel asks the provider to stop a task. The returned output reflects the
// task after the attempt.
func (s *Service) Cancel(ctx context.Context, ownerID, taskID string) (bool, *TaskOutput, error) {
	if _, err := s.owned(ctx, ownerID, taskID); err != nil {
		return false, nil, err
	}
	ok, err := s.controller.Cancel(ctx, taskID)
	if err != nil {
		return false, nil, err
	}
	task, err := s.controller.Get(ctx, taskID)
	if err != nil {
		return false, nil, err
	}
	return ok, NewTaskOutput(task), nil
}

// RecoverByTaskID probes the configured URL templates for a task. A found URL
// completes the task. A completed task reports its stored URL.
func (s *Service) RecoverByTaskID(ctx context.Context, ownerID, taskID string) (*RecoveryOutput, error) {
	task, err := s.owned(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status() == media.TaskStatusCompleted {
		return &RecoveryOutput{Success: true, URL: task.MediaURL(), Tried: []string{}, Task: NewTaskOutput(task)}, nil
	}
	if task.IsTerminal() {
		return nil, media.ErrTaskTerminal
	}

	res := s.recoverer.RecoverByTaskID(ctx, taskID, task.MediaType())
	return s.register(ctx, task, res)
}

// RecoverByURL validates a user supplied URL for a task. A valid URL
// completes the task; an invalid one changes nothing. On a completed task the
// URL is only validated.
func (s *Service) RecoverByURL(ctx context.Context, ownerID, taskID, url string) (*RecoveryOutput, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", media.ErrInvalidInput)
	}
	task, err := s.owned(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status() == media.TaskStatusCompleted {
		if url == task.MediaURL() {
			return &RecoveryOutput{Success: true, URL: url, Tried: []string{}, Task: NewTaskOutput(task)}, nil
		}
		res := s.recoverer.RecoverByURL(ctx, url, task.MediaType())
		out := &RecoveryOutput{Success: res.Success, URL: res.URL, Tried: res.Tried, Task: NewTaskOutput(task)}
		if res.Err != nil {
			out.Message = res.Err.Error()
		} else {
			out.Message = "task already completed; url not registered"
		}
		return out, nil
	}
	if task.IsTerminal() {
		return nil, media.ErrTaskTerminal
	}

	res := s.recoverer.RecoverByURL(ctx, url, task.MediaType())
	return s.register(ctx, task, res)
}

func (s *Service) register(ctx context.Context, task *media.Task, res recovery.Result) (*RecoveryOutput, error) {
	out := &RecoveryOutput{Success: res.Success, URL: res.URL, Tried: res.Tried}
	if !res.Success {
		if res.Err != nil {
			out.Message = res.Err.Error()
		}
		out.Task = NewTaskOutput(task)
		return out, nil
	}

	updated, err := s.controller.CompleteRecovered(ctx, task.ID(), res.URL)
	if errors.Is(err, media.ErrTaskTerminal) {
		// Finished concurrently; report the stored outcome.
		latest, getErr := s.controller.Get(ctx, task.ID())
		if getErr != nil {
			return nil, getErr
		}
		out.Task = NewTaskOutput(latest)
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Task = NewTaskOutput(updated)
	return out, nil
}

// Subscribe streams snapshots of one of ownerID's tasks. The snapshot is read
// after fn is registered, so no change falls between the two. The returned
// function unsubscribes.
func (s *Service) Subscribe(ctx context.Context, ownerID, taskID string, fn func(*TaskOutput)) (*TaskOutput, func(), error) {
	if _, err := s.owned(ctx, ownerID, taskID); err != nil {
		return nil, nil, err
	}
	unsubscribe := s.controller.Subscribe(taskID, func(t *media.Task) {
		fn(NewTaskOutput(t))
	})
	task, err := s.owned(ctx, ownerID, taskID)
	if err != nil {
		unsubscribe()
		return nil, nil, err
	}
	return NewTaskOutput(task), unsubscribe, nil
}

// Gallery lists ownerID's finished artifacts, newest first.
func (s *Service) Gallery(ctx context.Context, ownerID string, limit, offset int) ([]*GalleryItemOutput, error) {
	if s.gallery == nil {
		return []*GalleryItemOutput{}, nil
	}
	items, err := s.gallery.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	out := make([]*GalleryItemOutput, len(items))
	for i, item := range items {
		out[i] = NewGalleryItemOutput(item)
	}
	return out, nil
}

// Providers returns the health of every configured vendor.
func (s *Service) Providers() []outbound.VendorStatus {
	if s.providers == nil {
		return []outbound.VendorStatus{}
	}
	return s.providers.Status()
}

func (s *Service) owned(ctx context.Context, ownerID, taskID string) (*media.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id is required", media.ErrInvalidInput)
	}
	task, err := s.controller.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.BelongsTo(ownerID) {
		return nil, media.ErrTaskNotOwned
	}
	return task, nil
}
