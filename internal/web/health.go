package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Qdrant    string `json:"qdrant"`
	Timestamp string `json:"timestamp"`
}

const healthTimeout = 3 * time.Second

// health checks vector store connectivity; 503 when it is unreachable.
func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	response := HealthResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.deps.Store.Health(ctx); err != nil {
		h.log(c).Warn("health check failed", zap.Error(err))
		response.Status = "unhealthy"
		response.Qdrant = "disconnected"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Status = "healthy"
	response.Qdrant = "connected"
	c.JSON(http.StatusOK, response)
}
