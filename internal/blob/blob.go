// Package blob defines the snapshot store used to archive crawled page
// bodies for audit and later reprocessing.
package blob

import (
	"context"
	"io"
)

// Store persists raw page snapshots and returns a URI for each.
type Store interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
