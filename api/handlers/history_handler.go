package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/groupxyz/media-relay/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// HistoryHandler serves the request history
type HistoryHandler struct {
	history domain.HistoryRepository
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history domain.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListHistory handles GET /api/history?limit=&endpoint=&status=&provider=
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	filters := make(map[string]interface{})
	for _, key := range []string{"endpoint", "status", "provider"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	records, err := h.history.FindRecent(limit, filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// GetStats handles GET /api/history/stats
func (h *HistoryHandler) GetStats(c *gin.Context) {
	stats, err := h.history.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
