package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-api/internal/service"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
	"github.com/noah-isme/escola-api/pkg/response"
)

// BillingHandler exposes installment endpoints for admins and students.
type BillingHandler struct {
	service *service.BillingService
}

// NewBillingHandler constructs a billing handler.
func NewBillingHandler(svc *service.BillingService) *BillingHandler {
	return &BillingHandler{service: svc}
}

// MarkPaid godoc
// @Summary Mark installment as paid
// @Description Settle a pending installment; marking a paid one is a no-op
// @Tags Billing
// @Produce json
// @Param id path string true "Installment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /installments/{id}/pay [patch]
func (h *BillingHandler) MarkPaid(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	installment, err := h.service.MarkPaid(c.Request.Context(), c.Param("id"), time.Now().UTC(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installment, nil)
}

// MyStatus godoc
// @Summary Current payment standing
// @Description Classify the authenticated student's earliest pending installment
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/status [get]
func (h *BillingHandler) MyStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.Status(c.Request.Context(), claims.UserID, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// MyInstallments godoc
// @Summary Current student ledger
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/installments [get]
func (h *BillingHandler) MyInstallments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	installments, err := h.service.Statement(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installments, nil)
}
