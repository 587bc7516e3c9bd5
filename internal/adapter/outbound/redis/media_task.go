package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// Every key carries the same hash tag so that transactions and MGET over task
// and index keys stay in one cluster slot.
const (
	mediaTaskKeyPrefix  = "media:{mediagen}:task:"
	mediaOwnerKeyPrefix = "media:{mediagen}:owner:"
	mediaActiveKey      = "media:{mediagen}:active"
	mediaTerminalKey    = "media:{mediagen}:terminal"

	maxUpdateRetries = 16
)

// taskRecord is the JSON form of a task in Redis.
type taskRecord struct {
	ID               string    `json:"id"`
	MediaType        string    `json:"media_type"`
	Model            string    `json:"model"`
	Prompt           string    `json:"prompt"`
	ReferenceURL     string    `json:"reference_url,omitempty"`
	OwnerID          string    `json:"owner_id"`
	Status           string    `json:"status"`
	Progress         int       `json:"progress"`
	MediaURL         string    `json:"media_url,omitempty"`
	ErrorMessage     string    `json:"error,omitempty"`
	TimedOut         bool      `json:"timed_out"`
	AutoPolling      bool      `json:"auto_polling"`
	RecoveryAttempts int       `json:"recovery_attempts"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toRecord(t *media.Task) *taskRecord {
	s := t.State()
	return &taskRecord{
		ID:               t.ID(),
		MediaType:        t.MediaType().String(),
		Model:            t.Model(),
		Prompt:           t.Prompt(),
		ReferenceURL:     t.ReferenceURL(),
		OwnerID:          t.OwnerID(),
		Status:           s.Status.String(),
		Progress:         s.Progress,
		MediaURL:         s.MediaURL,
		ErrorMessage:     s.ErrMessage,
		TimedOut:         s.TimedOut,
		AutoPolling:      s.AutoPolling,
		RecoveryAttempts: s.RecoveryAttempts,
		CreatedAt:        t.CreatedAt(),
		UpdatedAt:        s.UpdatedAt,
	}
}

func (r *taskRecord) toDomain() *media.Task {
	return media.ReconstructTask(
		r.ID,
		media.MediaType(r.MediaType),
		r.Model,
		r.Prompt,
		r.ReferenceURL,
		r.OwnerID,
		r.CreatedAt,
		media.TaskState{
			Status:           media.TaskStatus(r.Status),
			Progress:         r.Progress,
			MediaURL:         r.MediaURL,
			ErrMessage:       r.ErrorMessage,
			TimedOut:         r.TimedOut,
			AutoPolling:      r.AutoPolling,
			RecoveryAttempts: r.RecoveryAttempts,
			UpdatedAt:        r.UpdatedAt,
		},
	)
}

func decodeTask(raw string) (*media.Task, error) {
	var rec taskRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode media task: %w", err)
	}
	return rec.toDomain(), nil
}

// MediaTaskStoreAdapter implements MediaTaskStorePort on Redis. Updates use
// optimistic WATCH/MULTI transactions.
type MediaTaskStoreAdapter struct {
	client redis.UniversalClient
}

// NewMediaTaskStoreAdapter creates a new Redis task store.
func NewMediaTaskStoreAdapter(client redis.UniversalClient) *MediaTaskStoreAdapter {
	return &MediaTaskStoreAdapter{client: client}
}

func taskKey(id string) string { return mediaTaskKeyPrefix + id }

func ownerKey(ownerID string) string { return mediaOwnerKeyPrefix + ownerID }

func (a *MediaTaskStoreAdapter) Create(ctx context.Context, task *media.Task) error {
	data, err := json.Marshal(toRecord(task))
	if err != nil {
		return fmt.Errorf("encode media task: %w", err)
	}

	ok, err := a.client.SetNX(ctx, taskKey(task.ID()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create media task: %w", err)
	}
	if !ok {
		return media.ErrTaskExists
	}

	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, ownerKey(task.OwnerID()), redis.Z{
			Score:  float64(task.CreatedAt().UnixNano()),
			Member: task.ID(),
		})
		a.index(ctx, pipe, task)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index media task: %w", err)
	}
	return nil
}

func (a *MediaTaskStoreAdapter) Get(ctx context.Context, id string) (*media.Task, error) {
	raw, err := a.client.Get(ctx, taskKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, media.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media task: %w", err)
	}
	return decodeTask(raw)
}

func (a *MediaTaskStoreAdapter) Update(ctx context.Context, id string, mutate func(*media.Task) error) (*media.Task, error) {
	key := taskKey(id)
	var out *media.Task

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return media.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		task, err := decodeTask(raw)
		if err != nil {
			return err
		}
		if err := mutate(task); err != nil {
			return err
		}
		data, err := json.Marshal(toRecord(task))
		if err != nil {
			return fmt.Errorf("encode media task: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			a.index(ctx, pipe, task)
			return nil
		})
		if err == nil {
			out = task
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := a.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update media task %s: too much contention", id)
}

// index keeps the active and terminal sets in line with the task state.
func (a *MediaTaskStoreAdapter) index(ctx context.Context, pipe redis.Pipeliner, task *media.Task) {
	switch {
	case task.IsTerminal():
		pipe.SRem(ctx, mediaActiveKey, task.ID())
		pipe.ZAdd(ctx, mediaTerminalKey, redis.Z{Score: float64(task.UpdatedAt().Unix()), Member: task.ID()})
	case task.AutoPolling():
		pipe.SAdd(ctx, mediaActiveKey, task.ID())
	default:
		pipe.SRem(ctx, mediaActiveKey, task.ID())
	}
}

func (a *MediaTaskStoreAdapter) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*media.Task, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	ids, err := a.client.ZRevRange(ctx, ownerKey(ownerID), int64(offset), stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list media tasks: %w", err)
	}
	return a.load(ctx, ids)
}

func (a *MediaTaskStoreAdapter) ListActive(ctx context.Context) ([]*media.Task, error) {
	ids, err := a.client.SMembers(ctx, mediaActiveKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active media tasks: %w", err)
	}
	tasks, err := a.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	active := tasks[:0]
	for _, t := range tasks {
		if !t.IsTerminal() && t.AutoPolling() {
			active = append(active, t)
		}
	}
	return active, nil
}

func (a *MediaTaskStoreAdapter) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := a.client.ZRangeByScore(ctx, mediaTerminalKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired media tasks: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tasks, err := a.load(ctx, ids)
	if err != nil {
		return 0, err
	}

	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range tasks {
			pipe.ZRem(ctx, ownerKey(t.OwnerID()), t.ID())
		}
		for _, id := range ids {
			pipe.Del(ctx, taskKey(id))
			pipe.ZRem(ctx, mediaTerminalKey, id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired media tasks: %w", err)
	}
	return int64(len(tasks)), nil
}

func (a *MediaTaskStoreAdapter) load(ctx context.Context, ids []string) ([]*media.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}
	values, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load media tasks: %w", err)
	}

	tasks := make([]*media.Task, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		task, err := decodeTask(raw)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Compile-time interface check
var _ outbound.MediaTaskStorePort = (*MediaTaskStoreAdapter)(nil)
