package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/models"
	"github.com/noah-isme/escola-api/internal/service"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
	"github.com/noah-isme/escola-api/pkg/response"
)

// Payment standing response headers attached to warning standings.
const (
	HeaderPaymentStanding = "X-Payment-Standing"
	HeaderPaymentDaysLate = "X-Payment-Days-Late"
)

// PaymentGate enforces the tuition access rule on student routes. A student
// whose earliest pending installment is past the grace window is blocked
// with 403. Students inside the due or grace window pass through with
// warning headers. Administrators bypass the gate entirely.
func PaymentGate(billing *service.BillingService, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if claims.Role != models.RoleStudent {
			c.Next()
			return
		}

		status, err := billing.Status(c.Request.Context(), claims.UserID, time.Now().UTC())
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		metrics.ObserveGateDecision(string(status.Standing))

		if status.Blocked() {
			logger.Info("payment gate blocked request",
				zap.String("user_id", claims.UserID),
				zap.Int("days_late", status.DaysLate))
			response.Error(c, appErrors.ErrPaymentBlocked)
			c.Abort()
			return
		}

		if status.Warning() {
			c.Header(HeaderPaymentStanding, string(status.Standing))
			c.Header(HeaderPaymentDaysLate, strconv.Itoa(status.DaysLate))
		}

		c.Next()
	}
}
