package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/insurechat/bridge/internal/gateway"
	"github.com/insurechat/bridge/internal/ingest"
	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/internal/session"
	"github.com/insurechat/bridge/pkg/logger"
)

// ChatRequest is one turn of a conversation: a question, an optional
// PDF attachment, or both.
type ChatRequest struct {
	ConversationID string
	Question       string
	Filename       string
	PDF            []byte
}

// ChatResponse is the contract the presentation layer depends on.
// PageRefs pairs citation metadata and image URL in one record; the
// legacy parallel-array shape is never produced.
type ChatResponse struct {
	ConversationID string            `json:"conversation_id"`
	AI             string            `json:"ai"`
	PageRefs       []models.Citation `json:"page_refs,omitempty"`
}

// Service is the chat entry point the HTTP layer calls.
type Service interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Ingestor runs the upload pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, conversationID, filename string, data []byte) (*ingest.Result, error)
}

// Asker calls the external answer service.
type Asker interface {
	Ask(ctx context.Context, conversationID, question string, pages []models.Page) (*gateway.Answer, error)
}

// Resolver reconciles raw citations against a page index.
type Resolver interface {
	Resolve(ctx context.Context, raws []models.RawCitation, idx *models.PageIndex) []models.Citation
}

type bridgeService struct {
	pipeline Ingestor
	gateway  Asker
	resolver Resolver
	sessions session.Store
	logger   logger.Logger
}

func NewService(pipeline Ingestor, gw Asker, resolver Resolver, sessions session.Store, log logger.Logger) Service {
	return &bridgeService{
		pipeline: pipeline,
		gateway:  gw,
		resolver: resolver,
		sessions: sessions,
		logger:   log,
	}
}

// Chat handles one turn. An attached PDF is ingested first, so the
// question (this turn's or a later one's) sees the new pages. Answer
// service failures leave the ingested page index intact for a retry.
func (s *bridgeService) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	var ingested *ingest.Result
	if len(req.PDF) > 0 {
		// Ingestion survives client disconnects: committed pages are
		// idempotent artifacts and must not be rolled back.
		ingestCtx := context.WithoutCancel(ctx)
		result, err := s.pipeline.Ingest(ingestCtx, conversationID, req.Filename, req.PDF)
		if err != nil {
			return nil, err
		}
		ingested = result
	}

	if req.Question == "" {
		return &ChatResponse{
			ConversationID: conversationID,
			AI:             confirmationText(ingested),
		}, nil
	}

	idx, err := s.sessions.Snapshot(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot conversation: %w", err)
	}

	answer, err := s.gateway.Ask(ctx, conversationID, req.Question, idx.OrderedPages())
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		ConversationID: conversationID,
		AI:             answer.Text,
		PageRefs:       s.resolver.Resolve(ctx, answer.Citations, idx),
	}, nil
}

func confirmationText(ingested *ingest.Result) string {
	if ingested == nil {
		return "Nothing to do: no question and no document."
	}

	text := fmt.Sprintf("Indexed %d pages from %s.",
		ingested.Document.PageCount, ingested.Document.OriginalFilename)
	if n := len(ingested.Warnings); n > 0 {
		text += fmt.Sprintf(" %d pages could not be fully processed.", n)
	}
	return text
}
