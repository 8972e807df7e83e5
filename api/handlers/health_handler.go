package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/groupxyz/media-relay/internal/app"
)

// Version is reported by /health
const Version = "1.0.0"

// ReadinessChecker reports whether the external tools can be run
type ReadinessChecker interface {
	Ready(ctx context.Context) (bool, []app.ToolStatus)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	tools ReadinessChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(tools ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		tools: tools,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ready, tools := h.tools.Ready(c.Request.Context())
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "external tools missing",
			"tools":  tools,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "tools": tools})
}
