package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/internal/errs"
	"github.com/insurechat/bridge/pkg/logger"
)

// Store is the MinIO-backed object store.
type Store struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

func New(cfg *config.StorageConfig, log logger.Logger) (*Store, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = client.MakeBucket(context.Background(), cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Store{
		client:     client,
		bucketName: cfg.BucketName,
		logger:     log,
	}, nil
}

// Put implements ObjectStore.Put.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("Failed to store object in MinIO",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("%w: put %s: %v", errs.ErrStorageUnavailable, key, err)
	}

	return key, nil
}

// Get implements ObjectStore.Get.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify("get", path, err)
	}
	defer obj.Close()

	// GetObject is lazy; missing keys surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.classify("read", path, err)
	}

	return data, nil
}

// Sign implements ObjectStore.Sign.
func (s *Store) Sign(ctx context.Context, path string, ttl time.Duration) (string, error) {
	// StatObject first so a missing path reports NotFound rather than a
	// signed URL that 404s on the client.
	if _, err := s.client.StatObject(ctx, s.bucketName, path, minio.StatObjectOptions{}); err != nil {
		return "", s.classify("stat", path, err)
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucketName, path, ttl, url.Values{})
	if err != nil {
		return "", s.classify("sign", path, err)
	}

	return signed.String(), nil
}

// CleanupBefore implements ObjectStore.CleanupBefore.
func (s *Store) CleanupBefore(ctx context.Context, threshold time.Time) error {
	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Recursive: true})

	for obj := range objectCh {
		if obj.Err != nil {
			s.logger.Error("Error listing objects",
				logger.String("bucket", s.bucketName),
				logger.Error(obj.Err),
			)
			continue
		}

		if obj.LastModified.Before(threshold) {
			if err := s.client.RemoveObject(ctx, s.bucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
				s.logger.Error("Failed to delete expired object",
					logger.String("key", obj.Key),
					logger.Error(err),
				)
				continue
			}
			s.logger.Info("Deleted expired object",
				logger.String("key", obj.Key),
				logger.Time("lastModified", obj.LastModified),
			)
		}
	}

	return nil
}

func (s *Store) classify(op, path string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return fmt.Errorf("%w: %s", errs.ErrNotFound, path)
	}

	s.logger.Error("MinIO operation failed",
		logger.String("op", op),
		logger.String("bucket", s.bucketName),
		logger.String("key", path),
		logger.Error(err),
	)
	return fmt.Errorf("%w: %s %s: %v", errs.ErrStorageUnavailable, op, path, err)
}
