package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lumen-edu/posgrad-api/internal/middleware"
	"github.com/lumen-edu/posgrad-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.SessionClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) models.UserInfo {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.UserInfo{}
	}
	return models.UserInfo{
		ID:       claims.UserID,
		Login:    claims.Login,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}
}
