package handlers

import (
	"net/http"

	"github.com/polydev-ai/quotaengine/internal/engine"

	"github.com/gin-gonic/gin"
)

// UsageHandler handles usage and credit reporting endpoints.
type UsageHandler struct {
	engine *engine.Engine
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(eng *engine.Engine) *UsageHandler {
	return &UsageHandler{engine: eng}
}

// Usage aggregates the user's metering log over a timeframe.
func (h *UsageHandler) Usage(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	report, errReport := h.engine.Usage(c.Request.Context(), userID, c.Query("timeframe"))
	if errReport != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errReport.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Credits summarizes the user's credit account and windowed spend.
func (h *UsageHandler) Credits(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	report, errReport := h.engine.CreditsUsage(c.Request.Context(), userID, c.Query("timeframe"))
	if errReport != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errReport.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
