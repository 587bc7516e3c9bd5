package outbound

import (
	"context"
	"io"
)

// ObjectStoragePort defines object storage for generated artifacts that
// providers return as raw bytes.
type ObjectStoragePort interface {
	// Put uploads an object and returns its public URL.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}
