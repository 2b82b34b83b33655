package handlers

import "github.com/gin-gonic/gin"

// getUserID extracts the authenticated user ID from gin context.
func getUserID(c *gin.Context) string {
	val, exists := c.Get("userID")
	if !exists {
		return ""
	}
	id, ok := val.(string)
	if !ok {
		return ""
	}
	return id
}

// getAdminID extracts the authenticated admin ID from gin context.
func getAdminID(c *gin.Context) string {
	val, exists := c.Get("adminID")
	if !exists {
		return ""
	}
	id, ok := val.(string)
	if !ok {
		return ""
	}
	return id
}
