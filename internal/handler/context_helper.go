package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/atz-edu/enroll-api/internal/middleware"
	"github.com/atz-edu/enroll-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// CurrentOperatorID returns the authenticated operator's ID, or "".
func CurrentOperatorID(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.OperatorID
}
