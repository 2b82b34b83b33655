package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/polydev-ai/quotaengine/internal/engine"

	"github.com/gin-gonic/gin"
)

// QuotaHandler handles quota check, status, and deduction endpoints.
type QuotaHandler struct {
	engine *engine.Engine
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(eng *engine.Engine) *QuotaHandler {
	return &QuotaHandler{engine: eng}
}

// Check answers whether the authenticated user may run a model. A store
// failure is a 503 so callers deny rather than guess.
func (h *QuotaHandler) Check(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	model := c.Query("model")
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}

	result, errCheck := h.engine.CheckAvailability(c.Request.Context(), userID, model)
	if errCheck != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "availability check failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status returns the user's quota, bonus, and credit snapshot.
func (h *QuotaHandler) Status(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, errStatus := h.engine.Status(c.Request.Context(), userID)
	if errStatus != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// deductRequest is the request body for usage deduction.
type deductRequest struct {
	SessionID        string            `json:"session_id"`
	Model            string            `json:"model" binding:"required"`
	InputTokens      int64             `json:"input_tokens"`
	OutputTokens     int64             `json:"output_tokens"`
	SourceType       string            `json:"source_type"`
	ProviderSourceID string            `json:"provider_source_id"`
	Metadata         map[string]string `json:"metadata"`
	ResponseMetadata json.RawMessage   `json:"response_metadata"`
}

// Deduct accounts for one completed model request.
func (h *QuotaHandler) Deduct(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req deductRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, errDeduct := h.engine.DeductUsage(c.Request.Context(), engine.DeductParams{
		UserID:           userID,
		SessionID:        req.SessionID,
		ModelID:          req.Model,
		InputTokens:      req.InputTokens,
		OutputTokens:     req.OutputTokens,
		SourceType:       req.SourceType,
		ProviderSourceID: req.ProviderSourceID,
		Metadata:         req.Metadata,
		ResponseMetadata: req.ResponseMetadata,
	})
	if errDeduct != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deduction failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// BonusBalance returns the user's available bonus messages and active
// grants.
func (h *QuotaHandler) BonusBalance(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balance, errBalance := h.engine.AvailableBonusBalance(c.Request.Context(), userID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bonus lookup failed"})
		return
	}
	grants, errGrants := h.engine.Bonuses().ListActive(c.Request.Context(), userID)
	if errGrants != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bonus lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available": balance,
		"grants":    grants,
	})
}
