package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint
var Version = "dev"

// Pinger checks that a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler implements the health check endpoint
type HealthHandler struct {
	storage     string
	pinger      Pinger
	assistantOn bool
	logger      *zap.Logger
}

// NewHealthHandler creates a HealthHandler. pinger may be nil for stores
// that cannot become unreachable.
func NewHealthHandler(storage string, pinger Pinger, assistantConfigured bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		storage:     storage,
		pinger:      pinger,
		assistantOn: assistantConfigured,
		logger:      logger,
	}
}

// GetHealth reports storage connectivity and assistant availability
func (h *HealthHandler) GetHealth(c *gin.Context) {
	assistantState := "unconfigured"
	if h.assistantOn {
		assistantState = "configured"
	}

	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request.Context()); err != nil {
			h.logger.Error("health check failed: storage unreachable",
				zap.Error(err),
				zap.String("storage", h.storage),
			)
			c.JSON(http.StatusServiceUnavailable, api.HealthResponse{
				Status:    "unhealthy",
				Storage:   h.storage,
				Assistant: assistantState,
				Version:   Version,
				Error:     err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, api.HealthResponse{
		Status:    "healthy",
		Storage:   h.storage,
		Assistant: assistantState,
		Version:   Version,
	})
}
