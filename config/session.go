package config

import (
	"sync"
	"time"
)

var (
	sessionOnce   sync.Once
	sessionConfig *SessionConfig
)

// SessionConfig configures the conversation session store.
type SessionConfig struct {
	Backend   string // "memory" or "redis"
	RedisAddr string
	RedisDB   int
	// Sessions idle longer than this are eligible for eviction.
	Retention time.Duration
}

func GetSessionConfig() *SessionConfig {
	sessionOnce.Do(func() {
		loadEnv()

		sessionConfig = &SessionConfig{
			Backend:   getEnv("SESSION_BACKEND", "memory"),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvInt("REDIS_DB", 0),
			Retention: minutes("SESSION_RETENTION_MIN", 24*60),
		}
	})
	return sessionConfig
}
