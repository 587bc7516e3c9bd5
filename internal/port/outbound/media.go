package outbound

import (
	"context"
	"time"

	"github.com/uniedit/mediagen/internal/domain/media"
)

// MediaTaskStorePort defines durable storage of generation tasks keyed by
// provider task id.
type MediaTaskStorePort interface {
	// Create stores a new task. It fails with media.ErrTaskExists on duplicates.
	Create(ctx context.Context, task *media.Task) error

	// Get retrieves a task by id.
	Get(ctx context.Context, id string) (*media.Task, error)

	// Update performs an atomic read-modify-write on one task. The mutate
	// function sees the freshest stored copy; returning an error aborts the
	// write and is passed through.
	Update(ctx context.Context, id string, mutate func(*media.Task) error) (*media.Task, error)

	// ListByOwner lists an owner's tasks, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*media.Task, error)

	// ListActive lists non-terminal tasks that still poll automatically.
	ListActive(ctx context.Context) ([]*media.Task, error)

	// DeleteTerminalBefore evicts terminal tasks last updated before cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MediaVendorPort is one provider's HTTP surface.
type MediaVendorPort interface {
	// Name returns the vendor name used in logs, metrics and breakers.
	Name() string

	// Supports reports whether the vendor serves model for mediaType.
	Supports(mediaType media.MediaType, model string) bool

	// Submit starts a generation.
	Submit(ctx context.Context, req *media.SubmitRequest) (*media.Submission, error)

	// Poll returns the current state of a task.
	Poll(ctx context.Context, taskID string) (*media.PollResult, error)

	// Cancel asks the provider to stop a task.
	Cancel(ctx context.Context, taskID string) (bool, error)
}

// MediaGatewayPort routes generation calls to the vendor serving a model.
type MediaGatewayPort interface {
	// Knows reports whether some vendor serves model for mediaType.
	Knows(mediaType media.MediaType, model string) bool

	// Submit starts a generation on the vendor serving req.Model.
	Submit(ctx context.Context, req *media.SubmitRequest) (*media.Submission, error)

	// Poll returns the current provider state of taskID.
	Poll(ctx context.Context, mediaType media.MediaType, model, taskID string) (*media.PollResult, error)

	// Cancel asks the provider to stop taskID.
	Cancel(ctx context.Context, mediaType media.MediaType, model, taskID string) (bool, error)
}

// MediaURLValidatorPort checks whether a media URL currently resolves.
type MediaURLValidatorPort interface {
	// Validate reports whether url answers with a usable media response.
	// Network failures are reported as false.
	Validate(ctx context.Context, url string, mediaType media.MediaType) bool
}

// MediaGalleryPort stores finished artifacts.
type MediaGalleryPort interface {
	// Create stores a gallery item.
	Create(ctx context.Context, item *media.GalleryItem) error

	// ListByOwner lists an owner's items, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*media.GalleryItem, error)
}

// VendorStatus describes one registered vendor.
type VendorStatus struct {
	Name    string `json:"name"`
	Breaker string `json:"breaker"`
}

// MediaGatewayStatusPort reports per-vendor health.
type MediaGatewayStatusPort interface {
	// Status returns the breaker state of every vendor, sorted by name.
	Status() []VendorStatus
}
