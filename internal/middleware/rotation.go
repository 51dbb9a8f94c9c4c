package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
	"github.com/noah-isme/escola-api/pkg/response"
)

// PasswordRotation blocks every protected route until an account flagged
// for mandatory password rotation has changed its password. The change
// password endpoint itself never carries this middleware.
func PasswordRotation() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if claims.MustChangePassword {
			response.Error(c, appErrors.ErrPasswordRotation)
			c.Abort()
			return
		}

		c.Next()
	}
}
