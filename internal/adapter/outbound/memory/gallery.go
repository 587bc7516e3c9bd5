package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/uniedit/mediagen/internal/domain/media"
	"github.com/uniedit/mediagen/internal/port/outbound"
)

// Gallery implements MediaGalleryPort in memory. One item is kept per task.
type Gallery struct {
	mu     sync.Mutex
	byTask map[string]media.GalleryItem
}

// NewGallery creates an empty gallery.
func NewGallery() *Gallery {
	return &Gallery{byTask: make(map[string]media.GalleryItem)}
}

func (g *Gallery) Create(_ context.Context, item *media.GalleryItem) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byTask[item.TaskID]; !ok {
		g.byTask[item.TaskID] = *item
	}
	return nil
}

func (g *Gallery) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]*media.GalleryItem, error) {
	g.mu.Lock()
	var out []*media.GalleryItem
	for _, item := range g.byTask {
		if item.OwnerID == ownerID {
			item := item
			out = append(out, &item)
		}
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}

var _ outbound.MediaGalleryPort = (*Gallery)(nil)
