package config

import (
	"sync"
	"time"
)

var (
	upstreamOnce   sync.Once
	upstreamConfig *UpstreamConfig
)

// UpstreamConfig configures the external answer-generation service.
type UpstreamConfig struct {
	URL         string
	BearerToken string
	Timeout     time.Duration
	MaxRetries  int
}

func GetUpstreamConfig() *UpstreamConfig {
	upstreamOnce.Do(func() {
		loadEnv()

		upstreamConfig = &UpstreamConfig{
			URL:         getEnv("ANSWER_SERVICE_URL", ""),
			BearerToken: getEnv("ANSWER_SERVICE_TOKEN", ""),
			Timeout:     time.Duration(getEnvInt("ANSWER_TIMEOUT_SEC", 180)) * time.Second,
			MaxRetries:  getEnvInt("ANSWER_MAX_RETRIES", 2),
		}
	})
	return upstreamConfig
}
