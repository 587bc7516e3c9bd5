// Package polling drives media generation tasks from submission to a
// terminal state.
package polling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/infra/events"
	"github.com/uniedit/mediagen/internal/module/media/recovery"
	"github.com/uniedit/mediagen/internal/port/outbound"
	"github.com/uniedit/mediagen/internal/utils/metrics"
)

// errNoChange aborts a store update that would not modify the task.
var errNoChange = errors.New("no change")

// change is a stored update waiting to be fanned out.
type change struct {
	task *media.Task
	prev media.TaskStatus
}

// Recoverer reconstructs a media URL for a stalled task.
type Recoverer interface {
	RecoverByTaskID(ctx context.Context, taskID string, mediaType media.MediaType) recovery.Result
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(event events.Event)
}

// StartRequest is the input of Start.
type StartRequest struct {
	Prompt       string
	MediaType    media.MediaType
	Model        string
	Params       map[string]any
	ReferenceURL string
	OwnerID      string
}

// Controller owns the polling lifecycle of media tasks.
type Controller struct {
	store     outbound.MediaTaskStorePort
	gateway   outbound.MediaGatewayPort
	recoverer Recoverer
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	config    *Config
	now       func() time.Time

	mu       sync.Mutex
	trackers map[string]*tracker
	subs     map[string]map[uint64]func(*media.Task)
	nextSub  uint64
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new polling controller. recoverer and publisher
// may be nil.
func NewController(
	store outbound.MediaTaskStorePort,
	gateway outbound.MediaGatewayPort,
	recoverer Recoverer,
	publisher Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
	config *Config,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:     store,
		gateway:   gateway,
		recoverer: recoverer,
		publisher: publisher,
		metrics:   m,
		logger:    logger.Named("polling"),
		config:    config.withDefaults(),
		now:       time.Now,
		trackers:  make(map[string]*tracker),
		subs:      make(map[string]map[uint64]func(*media.Task)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start submits a generation and begins polling it. The first poll fires
// immediately. A rejected submission returns a *media.SubmissionError and
// stores nothing.
func (c *Controller) Start(ctx context.Context, req StartRequest) (*media.Task, error) {
	if err := c.validate(&req); err != nil {
		return nil, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	sub, err := c.gateway.Submit(submitCtx, &media.SubmitRequest{
		MediaType:    req.MediaType,
		Model:        req.Model,
		Prompt:       req.Prompt,
		ReferenceURL: req.ReferenceURL,
		Params:       req.Params,
	})
	if err == nil && (sub == nil || sub.TaskID == "") {
		err = &media.SubmissionError{Provider: req.Model, Reason: "provider returned no task id"}
	}
	if err != nil {
		c.metrics.RecordSubmission(req.MediaType.String(), false)
		c.logger.Warn("submission rejected",
			zap.String("media_type", req.MediaType.String()),
			zap.String("model", req.Model),
			zap.Error(err))
		if media.IsSubmissionError(err) {
			return nil, err
		}
		return nil, &media.SubmissionError{Provider: req.Model, Err: err}
	}
	c.metrics.RecordSubmission(req.MediaType.String(), true)

	task := media.NewTask(sub.TaskID, req.MediaType, req.Model, req.Prompt, req.ReferenceURL, req.OwnerID, c.now())
	if err := c.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	updated, err := c.store.Update(ctx, task.ID(), func(t *media.Task) error {
		t.MarkProcessing()
		switch {
		case sub.MediaURL != "":
			return t.Complete(sub.MediaURL)
		case sub.Status == media.TaskStatusFailed:
			return t.Fail("provider reported failure")
		}
		return nil
	})
	if err != nil {
		// The pending row exists; its scheduler moves it forward once the
		// store recovers.
		c.logger.Error("stored task left pending",
			zap.String("task_id", task.ID()),
			zap.Error(err))
		c.track(task, true)
		return nil, fmt.Errorf("update task: %w", err)
	}

	c.logger.Info("task started",
		zap.String("task_id", updated.ID()),
		zap.String("media_type", updated.MediaType().String()),
		zap.String("model", updated.Model()),
		zap.String("status", updated.Status().String()))

	c.afterChange(updated, media.TaskStatusPending)
	if !updated.IsTerminal() {
		c.track(updated, true)
	}
	return updated, nil
}

func (c *Controller) validate(req *StartRequest) error {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.ReferenceURL = strings.TrimSpace(req.ReferenceURL)

	if !req.MediaType.IsValid() {
		return fmt.Errorf("%w: unsupported media type %q", media.ErrInvalidInput, req.MediaType)
	}
	if req.Model == "" {
		return fmt.Errorf("%w: model is required", media.ErrInvalidInput)
	}
	if req.Prompt == "" {
		referenceOnly := req.ReferenceURL != "" &&
			(req.MediaType == media.MediaTypeVideo || req.MediaType == media.MediaTypeImage)
		if !referenceOnly {
			return fmt.Errorf("%w: prompt is required", media.ErrInvalidInput)
		}
	}
	if !c.gateway.Knows(req.MediaType, req.Model) {
		return fmt.Errorf("%w: %s/%s", media.ErrUnknownModel, req.MediaType, req.Model)
	}
	return nil
}

// Get returns the stored task.
func (c *Controller) Get(ctx context.Context, taskID string) (*media.Task, error) {
	return c.store.Get(ctx, taskID)
}

// Poll checks a task now. Terminal tasks are returned unchanged. Manual polls
// continue attempts after automatic polling stopped and are not counted
// against the recovery attempt budget.
func (c *Controller) Poll(ctx context.Context, taskID string) (*media.Task, error) {
	tr := c.lookup(taskID)
	if tr == nil {
		task, err := c.store.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.IsTerminal() {
			return task, nil
		}
		tr = newTracker(task)
	}

	task, err := c.step(ctx, tr, true)
	if err != nil {
		return nil, err
	}
	if !task.IsTerminal() && task.AutoPolling() {
		c.track(task, false)
	}
	return task, nil
}

// Cancel asks the provider to stop a task. It returns false when the task is
// already terminal or the provider did not confirm; the task is then left
// unchanged. A poll already in flight completes and its response is discarded.
func (c *Controller) Cancel(ctx context.Context, taskID string) (bool, error) {
	task, err := c.store.Get(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task.IsTerminal() {
		return false, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	ok, err := c.gateway.Cancel(callCtx, task.MediaType(), task.Model(), taskID)
	if err != nil {
		c.logger.Warn("provider cancel failed", zap.String("task_id", taskID), zap.Error(err))
		return false, nil
	}
	if !ok {
		return false, nil
	}

	var prev media.TaskStatus
	updated, err := c.store.Update(ctx, taskID, func(t *media.Task) error {
		prev = t.Status()
		return t.Cancel()
	})
	if errors.Is(err, media.ErrTaskTerminal) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}

	c.halt(taskID)
	c.logger.Info("task canceled", zap.String("task_id", taskID))
	c.afterChange(updated, prev)
	return true, nil
}

// Notify applies an out-of-band "media ready" push as if it were a poll
// response and re-arms the task's next scheduled poll.
func (c *Controller) Notify(ctx context.Context, ev media.ReadyEvent) (*media.Task, error) {
	if ev.TaskID == "" {
		return nil, fmt.Errorf("%w: task id is required", media.ErrInvalidInput)
	}

	res := ev.PollResult()
	var latest *media.Task
	var prev media.TaskStatus
	updated, err := c.store.Update(ctx, ev.TaskID, func(t *media.Task) error {
		latest = t
		prev = t.Status()
		if !t.ApplyPoll(res) {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return latest, nil
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ready event applied",
		zap.String("task_id", ev.TaskID),
		zap.String("status", updated.Status().String()))

	c.afterChange(updated, prev)
	if updated.IsTerminal() {
		c.halt(ev.TaskID)
	} else if tr := c.lookup(ev.TaskID); tr != nil {
		tr.signal()
	}
	return updated, nil
}

// CompleteRecovered registers a recovered URL as a normal completion.
func (c *Controller) CompleteRecovered(ctx context.Context, taskID, url string) (*media.Task, error) {
	ch, err := c.completeRecovered(ctx, taskID, url)
	if err != nil {
		return nil, err
	}
	c.afterChange(ch.task, ch.prev)
	return ch.task, nil
}

func (c *Controller) completeRecovered(ctx context.Context, taskID, url string) (change, error) {
	var prev media.TaskStatus
	updated, err := c.store.Update(ctx, taskID, func(t *media.Task) error {
		prev = t.Status()
		return t.Complete(url)
	})
	if err != nil {
		return change{}, err
	}

	c.halt(taskID)
	c.logger.Info("task completed from recovered url",
		zap.String("task_id", taskID),
		zap.String("url", url))
	return change{task: updated, prev: prev}, nil
}

// Subscribe registers fn to be called synchronously with a snapshot of the
// task after every change. Callbacks run after the poll that produced the
// change has released the task, so fn may call Poll or Cancel. The returned
// function unsubscribes.
func (c *Controller) Subscribe(taskID string, fn func(*media.Task)) func() {
	c.mu.Lock()
	c.nextSub++
	key := c.nextSub
	if c.subs[taskID] == nil {
		c.subs[taskID] = make(map[uint64]func(*media.Task))
	}
	c.subs[taskID][key] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs[taskID], key)
			if len(c.subs[taskID]) == 0 {
				delete(c.subs, taskID)
			}
		})
	}
}

// Resume attaches schedulers to every stored task that still polls
// automatically. It returns the number of resumed tasks.
func (c *Controller) Resume(ctx context.Context) (int, error) {
	tasks, err := c.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active tasks: %w", err)
	}

	resumed := 0
	for _, task := range tasks {
		if task.IsTerminal() || !task.AutoPolling() {
			continue
		}
		if c.track(task, true) {
			resumed++
		}
	}

	c.logger.Info("resumed active tasks", zap.Int("count", resumed))
	return resumed, nil
}

// Active returns the number of running schedulers.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trackers)
}

// Stop stops all schedulers and waits for them to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.logger.Info("stopping polling controller")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("polling controller stopped")
}

// step performs one poll of a task and applies the result, the timeout rule
// and, in timed-out mode, one recovery attempt. Subscribers are notified
// after the task's lock is released.
func (c *Controller) step(ctx context.Context, tr *tracker, manual bool) (*media.Task, error) {
	task, changes, err := c.stepLocked(ctx, tr, manual)
	for _, ch := range changes {
		c.afterChange(ch.task, ch.prev)
	}
	return task, err
}

func (c *Controller) stepLocked(ctx context.Context, tr *tracker, manual bool) (*media.Task, []change, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task, err := c.store.Get(ctx, tr.taskID)
	if err != nil {
		return nil, nil, err
	}
	if task.IsTerminal() {
		return task, nil, nil
	}

	res, pollErr := c.pollWithRetry(ctx, task)
	degraded := false
	if pollErr != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		tr.errors++
		degraded = tr.errors >= c.config.MaxConsecutiveErrors
		c.logger.Warn("poll failed",
			zap.String("task_id", tr.taskID),
			zap.Int("consecutive_errors", tr.errors),
			zap.Bool("auth", media.IsAuthError(pollErr)),
			zap.Error(pollErr))
	} else {
		tr.errors = 0
	}

	now := c.now()
	var latest *media.Task
	var prev media.TaskStatus
	var changes []change
	updated, err := c.store.Update(ctx, tr.taskID, func(t *media.Task) error {
		latest = t
		prev = t.Status()
		if t.IsTerminal() {
			return errNoChange
		}
		changed := false
		if res != nil {
			changed = t.ApplyPoll(*res)
		}
		if !t.IsTerminal() && (degraded || now.Sub(t.CreatedAt()) > c.config.Ceiling) {
			changed = t.MarkTimedOut() || changed
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		updated = latest
	case err != nil:
		return nil, nil, err
	default:
		if updated.TimedOut() && !tr.timedOut.Load() {
			c.logger.Info("task timed out, switching to recovery",
				zap.String("task_id", tr.taskID),
				zap.Int("progress", updated.Progress()))
		}
		changes = append(changes, change{task: updated, prev: prev})
	}
	tr.timedOut.Store(updated.TimedOut())

	if updated.IsTerminal() || !updated.TimedOut() {
		return updated, changes, nil
	}
	recovered, ch, err := c.attemptRecovery(ctx, updated, manual)
	if ch != nil {
		changes = append(changes, *ch)
	}
	return recovered, changes, err
}

func (c *Controller) attemptRecovery(ctx context.Context, task *media.Task, manual bool) (*media.Task, *change, error) {
	if c.recoverer != nil {
		res := c.recoverer.RecoverByTaskID(ctx, task.ID(), task.MediaType())
		if res.Success {
			ch, err := c.completeRecovered(ctx, task.ID(), res.URL)
			if err == nil {
				return ch.task, &ch, nil
			}
			if !errors.Is(err, media.ErrTaskTerminal) {
				return nil, nil, err
			}
			latest, err := c.store.Get(ctx, task.ID())
			return latest, nil, err
		}
	}
	if manual {
		return task, nil, nil
	}

	var latest *media.Task
	updated, err := c.store.Update(ctx, task.ID(), func(t *media.Task) error {
		latest = t
		if t.IsTerminal() || !t.TimedOut() {
			return errNoChange
		}
		t.RecordRecoveryAttempt(c.config.MaxRecoveryAttempts)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return latest, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if !updated.AutoPolling() {
		c.logger.Warn("recovery attempts exhausted, automatic polling stopped",
			zap.String("task_id", task.ID()),
			zap.Int("attempts", updated.RecoveryAttempts()))
	}
	return updated, &change{task: updated, prev: updated.Status()}, nil
}

// pollWithRetry asks the gateway for the task state, retrying transport
// errors immediately with doubling delay. Auth errors are not retried.
func (c *Controller) pollWithRetry(ctx context.Context, task *media.Task) (*media.PollResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInitialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.config.RetryMaxDelay

	start := time.Now()
	res, err := backoff.Retry(ctx, func() (*media.PollResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()

		res, err := c.gateway.Poll(callCtx, task.MediaType(), task.Model(), task.ID())
		if err != nil {
			if media.IsAuthError(err) ||
				errors.Is(err, media.ErrPollUnsupported) ||
				errors.Is(err, media.ErrUnknownModel) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if res == nil {
			return nil, backoff.Permanent(errors.New("empty poll response"))
		}
		return res, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.config.RetryMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("retrying poll",
				zap.String("task_id", task.ID()),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)

	outcome := "ok"
	switch {
	case media.IsAuthError(err):
		outcome = "auth_error"
	case err != nil:
		outcome = "transport_error"
	}
	c.metrics.RecordPoll(task.MediaType().String(), outcome, time.Since(start))
	return res, err
}

// track launches a scheduler for task unless one is running. It reports
// whether a new scheduler was started.
func (c *Controller) track(task *media.Task, immediate bool) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.trackers[task.ID()]; ok {
		c.mu.Unlock()
		return false
	}
	tr := newTracker(task)
	c.trackers[task.ID()] = tr
	c.wg.Add(1)
	c.mu.Unlock()

	c.metrics.AddActivePollers(1)
	go c.run(tr, immediate)
	return true
}

func (c *Controller) run(tr *tracker, immediate bool) {
	defer func() {
		c.untrack(tr)
		c.metrics.AddActivePollers(-1)
		c.wg.Done()
	}()

	delay := c.interval(tr)
	if immediate {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-tr.stop:
			return
		case <-tr.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.interval(tr))
			continue
		case <-timer.C:
		}

		task, err := c.step(c.ctx, tr, false)
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, media.ErrTaskNotFound) {
				return
			}
			c.logger.Error("poll step failed", zap.String("task_id", tr.taskID), zap.Error(err))
			timer.Reset(c.interval(tr))
			continue
		}
		if task.IsTerminal() || !task.AutoPolling() {
			return
		}
		timer.Reset(c.interval(tr))
	}
}

func (c *Controller) interval(tr *tracker) time.Duration {
	if tr.timedOut.Load() {
		return c.config.RecoveryInterval
	}
	return c.config.PollInterval
}

func (c *Controller) lookup(taskID string) *tracker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trackers[taskID]
}

func (c *Controller) untrack(tr *tracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trackers[tr.taskID] == tr {
		delete(c.trackers, tr.taskID)
	}
}

// halt stops the scheduler of a task, if any.
func (c *Controller) halt(taskID string) {
	c.mu.Lock()
	tr := c.trackers[taskID]
	delete(c.trackers, taskID)
	c.mu.Unlock()

	if tr != nil {
		tr.halt()
	}
}

// afterChange fans a stored change out to subscribers, metrics and, for
// terminal tasks, the event bus. prev is the status before the change.
func (c *Controller) afterChange(task *media.Task, prev media.TaskStatus) {
	if task.Status() != prev {
		c.metrics.RecordTransition(task.MediaType().String(), task.Status().String())
	}

	c.mu.Lock()
	callbacks := make([]func(*media.Task), 0, len(c.subs[task.ID()]))
	for _, fn := range c.subs[task.ID()] {
		callbacks = append(callbacks, fn)
	}
	c.mu.Unlock()

	for _, fn := range callbacks {
		c.callSubscriber(fn, task.Clone())
	}

	if task.IsTerminal() && task.Status() != prev && c.publisher != nil {
		c.publisher.Publish(events.NewMediaTaskFinishedEvent(
			task.ID(),
			task.OwnerID(),
			task.MediaType().String(),
			task.Model(),
			task.Prompt(),
			task.Status().String(),
			task.MediaURL(),
			task.ErrMessage(),
		))
	}
}

func (c *Controller) callSubscriber(fn func(*media.Task), task *media.Task) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panic",
				zap.String("task_id", task.ID()),
				zap.Any("panic", r))
		}
	}()
	fn(task)
}
