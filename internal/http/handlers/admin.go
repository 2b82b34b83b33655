package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/polydev-ai/quotaengine/internal/bonus"
	"github.com/polydev-ai/quotaengine/internal/engine"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles grant, plan, credit, and reset administration.
type AdminHandler struct {
	engine *engine.Engine
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(eng *engine.Engine) *AdminHandler {
	return &AdminHandler{engine: eng}
}

// grantBonusRequest is the request body for issuing a bonus grant.
type grantBonusRequest struct {
	UserID        string     `json:"user_id" binding:"required"`
	BonusMessages int64      `json:"bonus_messages" binding:"required"`
	BonusType     string     `json:"bonus_type"`
	Reason        string     `json:"reason"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// GrantBonus issues a bonus message grant to a user.
func (h *AdminHandler) GrantBonus(c *gin.Context) {
	var req grantBonusRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	grant, errGrant := h.engine.GrantBonus(c.Request.Context(), bonus.GrantParams{
		UserID:        req.UserID,
		BonusMessages: req.BonusMessages,
		BonusType:     req.BonusType,
		GrantedBy:     getAdminID(c),
		Reason:        req.Reason,
		ExpiresAt:     req.ExpiresAt,
	})
	if errGrant != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errGrant.Error()})
		return
	}
	c.JSON(http.StatusOK, grant)
}

// ListBonuses returns every grant for a user, consumed and expired included.
func (h *AdminHandler) ListBonuses(c *gin.Context) {
	grants, errList := h.engine.Bonuses().ListAll(c.Request.Context(), c.Param("userID"))
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bonus lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": grants})
}

// DeleteBonus removes a grant by ID.
func (h *AdminHandler) DeleteBonus(c *gin.Context) {
	bonusID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bonus id"})
		return
	}

	if errDelete := h.engine.Bonuses().Delete(c.Request.Context(), bonusID); errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": bonusID})
}

// updatePlanRequest is the request body for a plan change.
type updatePlanRequest struct {
	PlanTier string `json:"plan_tier" binding:"required"`
}

// UpdatePlan moves a user onto a new plan tier.
func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	var req updatePlanRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if errUpdate := h.engine.UpdateUserPlan(c.Request.Context(), c.Param("userID"), req.PlanTier); errUpdate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errUpdate.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan_tier": req.PlanTier})
}

// ResetUser rolls one user's quota counters to the current month.
func (h *AdminHandler) ResetUser(c *gin.Context) {
	if errReset := h.engine.ResetMonthlyQuota(c.Request.Context(), c.Param("userID")); errReset != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// ResetAll rolls every stale quota row to the current month.
func (h *AdminHandler) ResetAll(c *gin.Context) {
	count, errReset := h.engine.ResetAllMonthlyQuotas(c.Request.Context())
	if errReset != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset_count": count})
}

// addCreditsRequest is the request body for a credit top-up.
type addCreditsRequest struct {
	Amount      float64 `json:"amount" binding:"required"`
	Promotional bool    `json:"promotional"`
}

// AddCredits tops up a user's credit balance.
func (h *AdminHandler) AddCredits(c *gin.Context) {
	var req addCreditsRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID := c.Param("userID")
	if errAdd := h.engine.Credits().Add(c.Request.Context(), userID, req.Amount, req.Promotional); errAdd != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errAdd.Error()})
		return
	}

	balance, errBalance := h.engine.Credits().Balance(c.Request.Context(), userID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, balance)
}

// referralRequest is the request body for referral bonus grants.
type referralRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	ReferrerID string `json:"referrer_id"`
}

// ReferralSignup grants the signup bonus to a newly referred user.
func (h *AdminHandler) ReferralSignup(c *gin.Context) {
	var req referralRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	grant, errGrant := h.engine.Bonuses().GrantReferralSignup(c.Request.Context(), req.UserID, req.ReferrerID)
	if errGrant != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errGrant.Error()})
		return
	}
	c.JSON(http.StatusOK, grant)
}

// ReferralCompletion grants the completion bonus to a referrer once the
// referred user has crossed the usage threshold.
func (h *AdminHandler) ReferralCompletion(c *gin.Context) {
	var req referralRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reached, errCheck := h.engine.Bonuses().ReferralCompletionReached(c.Request.Context(), req.UserID)
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "threshold check failed"})
		return
	}
	if !reached {
		c.JSON(http.StatusConflict, gin.H{"error": "referred user has not reached the completion threshold"})
		return
	}

	grant, errGrant := h.engine.Bonuses().GrantReferralCompletion(c.Request.Context(), req.ReferrerID, req.UserID)
	if errGrant != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errGrant.Error()})
		return
	}
	c.JSON(http.StatusOK, grant)
}
