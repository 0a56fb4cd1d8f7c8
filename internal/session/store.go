package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/pkg/logger"
)

// Session is the accumulated state of one conversation: every document
// uploaded so far and the page index built from them. A page key is
// only meaningful within the conversation that produced it.
type Session struct {
	ConversationID string                         `json:"conversationId"`
	Documents      []models.Document              `json:"documents"`
	Pages          map[models.PageKey]models.Page `json:"pages"`
	Order          []models.PageKey               `json:"order"`
	CreatedAt      time.Time                      `json:"createdAt"`
	LastActive     time.Time                      `json:"lastActive"`
}

// Store owns conversation sessions. Append is serialized per
// conversation so two concurrent uploads never interleave their page
// sets; unrelated conversations are never blocked by each other.
type Store interface {
	// GetOrCreate returns the session for id, creating it on first
	// reference.
	GetOrCreate(ctx context.Context, conversationID string) (*Session, error)
	// Append atomically adds a document and its pages to the session.
	Append(ctx context.Context, conversationID string, doc models.Document, pages []models.Page) error
	// Snapshot returns a point-in-time copy of the conversation's page
	// index, safe to read without further locking.
	Snapshot(ctx context.Context, conversationID string) (*models.PageIndex, error)
	// EvictIdle reclaims sessions idle since before threshold and
	// returns how many were dropped.
	EvictIdle(ctx context.Context, threshold time.Time) (int, error)
	Close() error
}

// NewStore builds the backend selected by SESSION_BACKEND.
func NewStore(log logger.Logger) (Store, error) {
	cfg := config.GetSessionConfig()
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(log), nil
	case "redis":
		return NewRedisStore(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

// keyedMutex hands out one mutex per conversation id, so appends to the
// same conversation serialize without a global lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (k *keyedMutex) drop(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.locks, key)
}

func snapshotOf(s *Session) *models.PageIndex {
	idx := &models.PageIndex{
		Documents: make([]models.Document, len(s.Documents)),
		Pages:     make(map[models.PageKey]models.Page, len(s.Pages)),
		Order:     make([]models.PageKey, len(s.Order)),
	}
	copy(idx.Documents, s.Documents)
	copy(idx.Order, s.Order)
	for k, v := range s.Pages {
		idx.Pages[k] = v
	}
	return idx
}

func appendToSession(s *Session, doc models.Document, pages []models.Page) {
	s.Documents = append(s.Documents, doc)
	for _, p := range pages {
		// Re-ingesting the same document id overwrites its own keys
		// only; keys of other documents are never touched.
		if _, exists := s.Pages[p.Key]; !exists {
			s.Order = append(s.Order, p.Key)
		}
		s.Pages[p.Key] = p
	}
	s.LastActive = time.Now()
}
