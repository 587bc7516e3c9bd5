package mediahttp

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mediamod "github.com/uniedit/mediagen/internal/module/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
	apperrors "github.com/uniedit/mediagen/internal/utils/errors"
	"github.com/uniedit/mediagen/internal/utils/middleware"
	"github.com/uniedit/mediagen/internal/utils/pagination"
)

// Service is the media use-case surface the handler serves.
type Service interface {
	Generate(ctx context.Context, ownerID string, in *mediamod.GenerateInput) (*mediamod.TaskOutput, error)
	Get(ctx context.Context, ownerID, taskID string) (*mediamod.TaskOutput, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*mediamod.TaskOutput, error)
	Check(ctx context.Context, ownerID, taskID string) (*mediamod.TaskOutput, error)
	Cancel(ctx context.Context, ownerID, taskID string) (bool, *mediamod.TaskOutput, error)
	RecoverByTaskID(ctx context.Context, ownerID, taskID string) (*mediamod.RecoveryOutput, error)
	RecoverByURL(ctx context.Context, ownerID, taskID, url string) (*mediamod.RecoveryOutput, error)
	Subscribe(ctx context.Context, ownerID, taskID string, fn func(*mediamod.TaskOutput)) (*mediamod.TaskOutput, func(), error)
	Gallery(ctx context.Context, ownerID string, limit, offset int) ([]*mediamod.GalleryItemOutput, error)
	Providers() []outbound.VendorStatus
}

// Handler handles media HTTP requests.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new media handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger.Named("media.http")}
}

// RegisterRoutes registers media routes. submitGuards run in front of task
// creation only (rate limiting, idempotency).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc, submitGuards ...gin.HandlerFunc) {
	mediaGroup := r.Group("/media")
	mediaGroup.Use(authMiddleware)
	{
		create := append(append([]gin.HandlerFunc{}, submitGuards...), h.CreateTask)
		mediaGroup.POST("/tasks", create...)
		mediaGroup.GET("/tasks", h.ListTasks)
		mediaGroup.GET("/tasks/:task_id", h.GetTask)
		mediaGroup.POST("/tasks/:task_id/poll", h.PollTask)
		mediaGroup.DELETE("/tasks/:task_id", h.CancelTask)
		mediaGroup.POST("/tasks/:task_id/recover", h.RecoverTask)
		mediaGroup.POST("/tasks/:task_id/recover-url", h.RecoverTaskURL)
		mediaGroup.GET("/tasks/:task_id/events", h.TaskEvents)

		mediaGroup.GET("/gallery", h.ListGallery)
		mediaGroup.GET("/providers", h.ListProviders)
	}
}

// CreateTask handles generation requests.
func (h *Handler) CreateTask(c *gin.Context) {
	var input mediamod.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
		return
	}

	output, err := h.service.Generate(c.Request.Context(), middleware.GetOwnerID(c), &input)
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, output)
}

// ListTasks handles task listing requests.
func (h *Handler) ListTasks(c *gin.Context) {
	p, ok := bindPagination(c)
	if !ok {
		return
	}

	tasks, err := h.service.List(c.Request.Context(), middleware.GetOwnerID(c), p.Limit(), p.Offset())
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "page": p.Number(), "page_size": p.Limit()})
}

// GetTask handles task retrieval requests.
func (h *Handler) GetTask(c *gin.Context) {
	output, err := h.service.Get(c.Request.Context(), middleware.GetOwnerID(c), c.Param("task_id"))
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, output)
}

// PollTask checks the provider for a task right now.
func (h *Handler) PollTask(c *gin.Context) {
	output, err := h.service.Check(c.Request.Context(), middleware.GetOwnerID(c), c.Param("task_id"))
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, output)
}

// CancelTask handles task cancellation requests.
func (h *Handler) CancelTask(c *gin.Context) {
	canceled, output, err := h.service.Cancel(c.Request.Context(), middleware.GetOwnerID(c), c.Param("task_id"))
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"canceled": canceled, "task": output})
}

// RecoverTask probes known URL patterns for a task's artifact.
func (h *Handler) RecoverTask(c *gin.Context) {
	output, err := h.service.RecoverByTaskID(c.Request.Context(), middleware.GetOwnerID(c), c.Param("task_id"))
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	respondRecovery(c, output)
}

// RecoverTaskURL validates a caller supplied artifact URL.
func (h *Handler) RecoverTaskURL(c *gin.Context) {
	var input mediamod.RecoverURLInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
		return
	}

	output, err := h.service.RecoverByURL(c.Request.Context(), middleware.GetOwnerID(c), c.Param("task_id"), input.URL)
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	respondRecovery(c, output)
}

// ListGallery lists the caller's finished artifacts.
func (h *Handler) ListGallery(c *gin.Context) {
	p, ok := bindPagination(c)
	if !ok {
		return
	}

	items, err := h.service.Gallery(c.Request.Context(), middleware.GetOwnerID(c), p.Limit(), p.Offset())
	if err != nil {
		handleMediaError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "page": p.Number(), "page_size": p.Limit()})
}

// ListProviders reports breaker state per vendor.
func (h *Handler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.service.Providers()})
}

func bindPagination(c *gin.Context) (*pagination.Query, bool) {
	p := pagination.New()
	if err := c.ShouldBindQuery(p); err != nil {
		apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
		return nil, false
	}
	return p, true
}

func respondRecovery(c *gin.Context, output *mediamod.RecoveryOutput) {
	if output.Success {
		c.JSON(http.StatusOK, output)
		return
	}
	message := output.Message
	if message == "" {
		message = "recovery failed"
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":    apperrors.ErrorDetail{Code: codeRecoveryExhausted, Message: message},
		"recovery": output,
	})
}
