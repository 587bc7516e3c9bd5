package mediahttp

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	mediamod "github.com/uniedit/mediagen/internal/module/media"
	"github.com/uniedit/mediagen/internal/utils/middleware"
)

const (
	sseEventTask      = "task"
	sseEventHeartbeat = "heartbeat"
	sseHeartbeat      = 15 * time.Second
	sseBuffer         = 8
)

// TaskEvents streams task snapshots as server-sent events until the task
// finishes or the client goes away. The first event is the current snapshot.
func (h *Handler) TaskEvents(c *gin.Context) {
	updates := make(chan *mediamod.TaskOutput, sseBuffer)
	push := func(o *mediamod.TaskOutput) {
		for {
			select {
			case updates <- o:
				return
			default:
				// Slow reader: drop the oldest snapshot, the newest wins.
				select {
				case <-updates:
				default:
				}
			}
		}
	}

	ctx := c.Request.Context()
	snapshot, unsubscribe, err := h.service.Subscribe(ctx, middleware.GetOwnerID(c), c.Param("task_id"), push)
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(sseEventTask, snapshot)
	c.Writer.Flush()
	if snapshot.IsTerminal() {
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case o := <-updates:
			c.SSEvent(sseEventTask, o)
			return !o.IsTerminal()
		case <-heartbeat.C:
			c.SSEvent(sseEventHeartbeat, time.Now().Unix())
			return true
		}
	})
}
