// Package gcs archives page snapshots in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Snapshots are immutable once written, so downstream readers may cache them
// indefinitely.
const snapshotCacheControl = "public, max-age=31536000, immutable"

// Config captures the parameters for the snapshot bucket.
type Config struct {
	Bucket string
	// DefaultContentType is applied when a caller does not specify one;
	// snapshots are HTML page bodies unless configured otherwise.
	DefaultContentType string
	// ChunkSize tunes the upload buffer; zero keeps the client default.
	ChunkSize int
}

// Store writes snapshots to a configured GCS bucket.
type Store struct {
	client      *storage.Client
	bucket      string
	contentType string
	chunkSize   int
}

// New creates a GCS-backed snapshot store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	contentType := cfg.DefaultContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return &Store{
		client:      client,
		bucket:      cfg.Bucket,
		contentType: contentType,
		chunkSize:   cfg.ChunkSize,
	}, nil
}

// PutObject uploads one snapshot and returns its gs:// URI. An empty
// contentType falls back to the configured default.
func (s *Store) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	if contentType == "" {
		contentType = s.contentType
	}

	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = snapshotCacheControl
	writer.Metadata = map[string]string{
		"archived-at": time.Now().UTC().Format(time.RFC3339),
	}
	if s.chunkSize > 0 {
		writer.ChunkSize = s.chunkSize
	}
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
