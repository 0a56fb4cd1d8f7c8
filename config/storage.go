package config

import (
	"sync"
	"time"
)

var (
	storageOnce   sync.Once
	storageConfig *StorageConfig
)

// StorageConfig selects and configures the object-store backend.
type StorageConfig struct {
	Backend       string // "minio" or "s3"
	SignedURLTTL  time.Duration
	RetentionDays int

	// MinIO
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioRegion    string

	// AWS S3
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string

	BucketName string
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		loadEnv()

		storageConfig = &StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "minio"),
			SignedURLTTL:  minutes("SIGNED_URL_TTL_MIN", 15),
			RetentionDays: getEnvInt("ARTIFACT_RETENTION_DAYS", 7),

			MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
			MinioRegion:    getEnv("MINIO_REGION", ""),

			AWSRegion:    getEnv("AWS_REGION", ""),
			AWSAccessKey: getEnv("AWS_ACCESS_KEY", ""),
			AWSSecretKey: getEnv("AWS_SECRET_KEY", ""),

			BucketName: getEnv("STORAGE_BUCKET_NAME", "insurechat-artifacts"),
		}
	})
	return storageConfig
}
