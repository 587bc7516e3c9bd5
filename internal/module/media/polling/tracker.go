package polling

import (
	"sync"
	"sync/atomic"

	"github.com/uniedit/mediagen/internal/domain/media"
)

// tracker is the scheduling state of one task. Steps for the same task are
// serialized through mu.
type tracker struct {
	taskID    string
	mediaType media.MediaType
	model     string

	mu        sync.Mutex
	errors    int // consecutive failed polls, guarded by mu
	timedOut  atomic.Bool
	wake      chan struct{}
	stop      chan struct{}
	closeOnce sync.Once
}

func newTracker(task *media.Task) *tracker {
	tr := &tracker{
		taskID:    task.ID(),
		mediaType: task.MediaType(),
		model:     task.Model(),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	tr.timedOut.Store(task.TimedOut())
	return tr
}

// signal asks the loop to re-arm its timer. It never blocks.
func (tr *tracker) signal() {
	select {
	case tr.wake <- struct{}{}:
	default:
	}
}

// halt stops the loop before its next scheduled poll.
func (tr *tracker) halt() {
	tr.closeOnce.Do(func() { close(tr.stop) })
}
