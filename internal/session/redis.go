package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/pkg/logger"
)

// RedisStore keeps sessions in Redis so they survive bridge restarts.
// Append serialization still happens in-process: one bridge instance
// owns a conversation, Redis only provides durability and TTL eviction.
type RedisStore struct {
	client    *redis.Client
	locks     *keyedMutex
	retention time.Duration
	logger    logger.Logger
}

func NewRedisStore(cfg *config.SessionConfig, log logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		locks:     newKeyedMutex(),
		retention: cfg.Retention,
		logger:    log,
	}, nil
}

func sessionKey(conversationID string) string {
	return "session:" + conversationID
}

// GetOrCreate implements Store.GetOrCreate.
func (s *RedisStore) GetOrCreate(ctx context.Context, conversationID string) (*Session, error) {
	sess, err := s.load(ctx, conversationID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	now := time.Now()
	sess = &Session{
		ConversationID: conversationID,
		Pages:          make(map[models.PageKey]models.Page),
		CreatedAt:      now,
		LastActive:     now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("Created conversation session",
		logger.String("conversationId", conversationID),
	)
	return sess, nil
}

// Append implements Store.Append.
func (s *RedisStore) Append(ctx context.Context, conversationID string, doc models.Document, pages []models.Page) error {
	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.GetOrCreate(ctx, conversationID)
	if err != nil {
		return err
	}

	appendToSession(sess, doc, pages)
	return s.save(ctx, sess)
}

// Snapshot implements Store.Snapshot.
func (s *RedisStore) Snapshot(ctx context.Context, conversationID string) (*models.PageIndex, error) {
	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sess.LastActive = time.Now()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	return snapshotOf(sess), nil
}

// EvictIdle implements Store.EvictIdle. Redis TTLs already reclaim idle
// sessions; nothing to sweep here.
func (s *RedisStore) EvictIdle(ctx context.Context, threshold time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, conversationID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Pages == nil {
		sess.Pages = make(map[models.PageKey]models.Page)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sess.ConversationID), data, s.retention).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
