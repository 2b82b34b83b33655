// Package http wires the accounting engine's REST API.
package http

import (
	"net/http"
	"strings"

	"github.com/polydev-ai/quotaengine/internal/config"
	"github.com/polydev-ai/quotaengine/internal/engine"
	"github.com/polydev-ai/quotaengine/internal/http/handlers"
	"github.com/polydev-ai/quotaengine/internal/security"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the user-facing and admin API routes.
func RegisterRoutes(r *gin.Engine, eng *engine.Engine, jwtCfg config.JWTConfig) {
	if r == nil || eng == nil {
		return
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v0 := r.Group("/v0")
	v0.Use(userAuthMiddleware(jwtCfg))

	quotaHandler := handlers.NewQuotaHandler(eng)
	v0.GET("/quota/check", quotaHandler.Check)
	v0.GET("/quota/status", quotaHandler.Status)
	v0.POST("/quota/deduct", quotaHandler.Deduct)
	v0.GET("/quota/bonus", quotaHandler.BonusBalance)

	usageHandler := handlers.NewUsageHandler(eng)
	v0.GET("/usage", usageHandler.Usage)
	v0.GET("/credits", usageHandler.Credits)

	admin := r.Group("/v0/admin")
	admin.Use(adminAuthMiddleware(jwtCfg))

	adminHandler := handlers.NewAdminHandler(eng)
	admin.POST("/bonus", adminHandler.GrantBonus)
	admin.GET("/bonus/:userID", adminHandler.ListBonuses)
	admin.DELETE("/bonus/:id", adminHandler.DeleteBonus)
	admin.PUT("/users/:userID/plan", adminHandler.UpdatePlan)
	admin.POST("/users/:userID/reset", adminHandler.ResetUser)
	admin.POST("/reset", adminHandler.ResetAll)
	admin.POST("/credits/:userID/add", adminHandler.AddCredits)
	admin.POST("/referrals/signup", adminHandler.ReferralSignup)
	admin.POST("/referrals/completion", adminHandler.ReferralCompletion)
}

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// userAuthMiddleware validates user JWTs and stores the user ID in context.
func userAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", claims.UserID)
		c.Next()
	}
}

// adminAuthMiddleware validates admin JWTs.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("adminID", claims.AdminID)
		c.Next()
	}
}
