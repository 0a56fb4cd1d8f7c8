package session

import (
	"context"
	"sync"
	"time"

	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/pkg/logger"
)

// MemoryStore keeps sessions in process memory. The default backend:
// the bridge owns its conversations for the process lifetime, with idle
// sessions reclaimed by the maintenance worker.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locks    *keyedMutex
	logger   logger.Logger
}

func NewMemoryStore(log logger.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		locks:    newKeyedMutex(),
		logger:   log,
	}
}

// GetOrCreate implements Store.GetOrCreate.
func (s *MemoryStore) GetOrCreate(ctx context.Context, conversationID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[conversationID]
	if !ok {
		now := time.Now()
		sess = &Session{
			ConversationID: conversationID,
			Pages:          make(map[models.PageKey]models.Page),
			CreatedAt:      now,
			LastActive:     now,
		}
		s.sessions[conversationID] = sess
		s.logger.Info("Created conversation session",
			logger.String("conversationId", conversationID),
		)
	}
	return sess, nil
}

// Append implements Store.Append.
func (s *MemoryStore) Append(ctx context.Context, conversationID string, doc models.Document, pages []models.Page) error {
	lock := s.locks.get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.GetOrCreate(ctx, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	appendToSession(sess, doc, pages)

	return nil
}

// Snapshot implements Store.Snapshot.
func (s *MemoryStore) Snapshot(ctx context.Context, conversationID string) (*models.PageIndex, error) {
	sess, err := s.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.LastActive = time.Now()
	return snapshotOf(sess), nil
}

// EvictIdle implements Store.EvictIdle.
func (s *MemoryStore) EvictIdle(ctx context.Context, threshold time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastActive.Before(threshold) {
			delete(s.sessions, id)
			s.locks.drop(id)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info("Evicted idle conversation sessions",
			logger.Int("count", evicted),
		)
	}
	return evicted, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
