package handlers

import (
	"github.com/insurechat/bridge/internal/bridge"
	"github.com/insurechat/bridge/pkg/logger"
)

type Handlers struct {
	Chat *ChatHandler
}

func NewHandlers(chatService bridge.Service, logger logger.Logger) *Handlers {
	return &Handlers{
		Chat: NewChatHandler(chatService, logger),
	}
}
