package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/middleware"
	"github.com/noah-isme/escola-api/internal/models"
	"github.com/noah-isme/escola-api/internal/service"
)

type stubInstallmentRepo struct {
	installment *models.Installment
	earliest    *models.Installment
	changed     bool
}

func (s *stubInstallmentRepo) CreateBatch(context.Context, []models.Installment) error { return nil }

func (s *stubInstallmentRepo) FindByID(context.Context, string) (*models.Installment, error) {
	if s.installment == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.installment
	return &copied, nil
}

func (s *stubInstallmentRepo) FindEarliestPending(context.Context, string) (*models.Installment, error) {
	if s.earliest == nil {
		return nil, sql.ErrNoRows
	}
	return s.earliest, nil
}

func (s *stubInstallmentRepo) ListByUser(context.Context, string) ([]models.Installment, error) {
	if s.installment == nil {
		return nil, nil
	}
	return []models.Installment{*s.installment}, nil
}

func (s *stubInstallmentRepo) CountByUser(context.Context, string) (int, error) { return 0, nil }

func (s *stubInstallmentRepo) MarkPaid(context.Context, string, time.Time) (bool, error) {
	return s.changed, nil
}

func billingRouter(repo *stubInstallmentRepo, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	billing := service.NewBillingService(repo, nil, nil, zap.NewNop(), service.BillingConfig{GraceDays: 7})
	h := NewBillingHandler(billing)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, claims)
	})
	router.PATCH("/installments/:id/pay", h.MarkPaid)
	router.GET("/me/status", h.MyStatus)
	router.GET("/me/installments", h.MyInstallments)
	return router
}

func TestMarkPaidEndpoint(t *testing.T) {
	repo := &stubInstallmentRepo{
		installment: &models.Installment{
			ID: "inst-1", UserID: "student-1",
			DueDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Status:  models.InstallmentPending,
		},
		changed: true,
	}
	router := billingRouter(repo, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPatch, "/installments/inst-1/pay", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data models.Installment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, models.InstallmentPaid, envelope.Data.Status)
	assert.NotNil(t, envelope.Data.PaidAt)
}

func TestMarkPaidUnknownInstallmentEndpoint(t *testing.T) {
	router := billingRouter(&stubInstallmentRepo{}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPatch, "/installments/missing/pay", nil))

	require.Equal(t, http.StatusNotFound, recorder.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestMyStatusEndpoint(t *testing.T) {
	repo := &stubInstallmentRepo{earliest: &models.Installment{
		DueDate: time.Now().UTC().AddDate(0, 0, -3),
		Status:  models.InstallmentPending,
	}}
	router := billingRouter(repo, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/me/status", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data models.PaymentStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, models.StandingOverdueGrace, envelope.Data.Standing)
	assert.Equal(t, 3, envelope.Data.DaysLate)
}

func TestMyInstallmentsEndpoint(t *testing.T) {
	repo := &stubInstallmentRepo{installment: &models.Installment{
		ID: "inst-1", UserID: "student-1",
		DueDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:  models.InstallmentPending,
	}}
	router := billingRouter(repo, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/me/installments", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data []models.Installment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "inst-1", envelope.Data[0].ID)
}
