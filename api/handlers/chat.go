package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/insurechat/bridge/internal/bridge"
	"github.com/insurechat/bridge/internal/errs"
	"github.com/insurechat/bridge/pkg/logger"
)

type ChatHandler struct {
	service bridge.Service
	logger  logger.Logger
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewChatHandler(service bridge.Service, logger logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// Chat handles one conversation turn: multipart form with `human`
// (question), `conversation_id`, and optionally `pdf_file` plus
// `original_filename`.
func (h *ChatHandler) Chat(c *gin.Context) {
	req := &bridge.ChatRequest{
		Question:       c.PostForm("human"),
		ConversationID: c.PostForm("conversation_id"),
		Filename:       c.PostForm("original_filename"),
	}

	file, header, err := c.Request.FormFile("pdf_file")
	switch {
	case err == nil:
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			h.handleError(c, readErr)
			return
		}
		req.PDF = data
		if req.Filename == "" {
			req.Filename = header.Filename
		}
	case errors.Is(err, http.ErrMissingFile):
		// question-only turn
	default:
		h.handleError(c, err)
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Health reports liveness.
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleError maps the error taxonomy onto HTTP statuses, keeping the
// document-side and assistant-side failure messages distinguishable.
func (h *ChatHandler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Something went wrong, please retry."

	switch {
	case errors.Is(err, errs.ErrInvalidUpload), errors.Is(err, errs.ErrUnsupportedDocument):
		status = http.StatusBadRequest
		message = "We could not read your document. Please upload a valid PDF."
	case errors.Is(err, errs.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
		message = "Document storage is temporarily unavailable. Please retry your upload."
	case errors.Is(err, errs.ErrUpstreamTimeout):
		status = http.StatusGatewayTimeout
		message = "The assistant took too long to respond. Your documents are still available, please retry."
	case errors.Is(err, errs.ErrUpstreamBadRequest),
		errors.Is(err, errs.ErrUpstreamUnavailable),
		errors.Is(err, errs.ErrMalformedUpstreamResponse):
		status = http.StatusBadGateway
		message = "The assistant is unavailable right now. Your documents are still available, please retry."
	}

	h.logger.Error("Chat request failed",
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	)

	c.JSON(status, ErrorResponse{
		Error:   err.Error(),
		Message: message,
	})
}
