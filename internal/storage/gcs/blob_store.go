// Package gcs persists result snapshots in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// Config names the target bucket.
type Config struct {
	Bucket string
}

// BlobStore uploads task snapshots to one bucket. Snapshots are small and
// written once per task, so each upload is a single-chunk write.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed blob store over an existing client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// PutObject uploads the snapshot payload and returns its gs:// URI. Upload
// errors surface on Close, so both paths are checked.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ChunkSize = 0
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := w.Write(data); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("upload snapshot: %w (close: %v)", err, closeErr)
		}
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize snapshot upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
