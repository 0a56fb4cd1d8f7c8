package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/pkg/logger"
	miniostore "github.com/insurechat/bridge/pkg/storage/minio"
	s3store "github.com/insurechat/bridge/pkg/storage/s3"
)

// ObjectStore is the logical contract over the durable blob store.
// Writes are at-least-once: a retried Put at the same key overwrites the
// identical content, so callers never observe duplicates.
type ObjectStore interface {
	// Put stores data under key and returns the storage path.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get fetches the object at path. Returns errs.ErrNotFound when the
	// path does not exist, errs.ErrStorageUnavailable when the store is
	// unreachable.
	Get(ctx context.Context, path string) ([]byte, error)
	// Sign mints a time-limited GET URL for an existing object.
	Sign(ctx context.Context, path string, ttl time.Duration) (string, error)
	// CleanupBefore removes objects last modified before threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewObjectStore builds the backend selected by STORAGE_BACKEND.
func NewObjectStore(log logger.Logger) (ObjectStore, error) {
	cfg := config.GetStorageConfig()
	switch cfg.Backend {
	case "minio":
		return miniostore.New(cfg, log)
	case "s3":
		return s3store.New(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
