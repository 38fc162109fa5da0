package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/internal/assistant"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"go.uber.org/zap"
)

// AssistantHandler implements the chat assistant endpoints
type AssistantHandler struct {
	assistant *assistant.Assistant
	logger    *zap.Logger
}

// NewAssistantHandler creates a new AssistantHandler
func NewAssistantHandler(a *assistant.Assistant, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistant: a,
		logger:    logger,
	}
}

// GetApiV1AssistantGreeting returns the opening message of a conversation
func (h *AssistantHandler) GetApiV1AssistantGreeting(c *gin.Context) {
	msg := h.assistant.Greeting()
	c.JSON(http.StatusOK, api.ChatResponse{Role: string(msg.Role), Text: msg.Text})
}

// PostApiV1AssistantChat answers a user message. Provider failures are
// reported in the reply text, never as an error status.
func (h *AssistantHandler) PostApiV1AssistantChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	reply, err := h.assistant.Ask(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, h.logger, err, "Failed to answer message")
		return
	}

	h.logger.Info("assistant replied",
		zap.Int("prompt_length", len(req.Message)),
		zap.Int("reply_length", len(reply.Text)),
	)

	c.JSON(http.StatusOK, api.ChatResponse{Role: string(reply.Role), Text: reply.Text})
}
