package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/models"
	"github.com/noah-isme/escola-api/internal/service"
)

type stubLedgerRepo struct {
	earliest *models.Installment
}

func (s *stubLedgerRepo) CreateBatch(context.Context, []models.Installment) error { return nil }

func (s *stubLedgerRepo) FindByID(context.Context, string) (*models.Installment, error) {
	return nil, sql.ErrNoRows
}

func (s *stubLedgerRepo) FindEarliestPending(context.Context, string) (*models.Installment, error) {
	if s.earliest == nil {
		return nil, sql.ErrNoRows
	}
	return s.earliest, nil
}

func (s *stubLedgerRepo) ListByUser(context.Context, string) ([]models.Installment, error) {
	return nil, nil
}

func (s *stubLedgerRepo) CountByUser(context.Context, string) (int, error) { return 0, nil }

func (s *stubLedgerRepo) MarkPaid(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func gateRouter(repo *stubLedgerRepo, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	billing := service.NewBillingService(repo, nil, nil, zap.NewNop(), service.BillingConfig{GraceDays: 7})

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, claims)
	})
	router.Use(PaymentGate(billing, nil, zap.NewNop()))
	router.GET("/content", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func TestPaymentGateBlocksPastGrace(t *testing.T) {
	repo := &stubLedgerRepo{earliest: &models.Installment{DueDate: daysAgo(10), Status: models.InstallmentPending}}
	router := gateRouter(repo, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/content", nil))

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestPaymentGateWarnsInsideGrace(t *testing.T) {
	repo := &stubLedgerRepo{earliest: &models.Installment{DueDate: daysAgo(3), Status: models.InstallmentPending}}
	router := gateRouter(repo, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/content", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if got := recorder.Header().Get(HeaderPaymentStanding); got != string(models.StandingOverdueGrace) {
		t.Fatalf("unexpected standing header: %q", got)
	}
	if got := recorder.Header().Get(HeaderPaymentDaysLate); got != "3" {
		t.Fatalf("unexpected days late header: %q", got)
	}
}

func TestPaymentGatePassesActiveStudentWithoutHeaders(t *testing.T) {
	repo := &stubLedgerRepo{earliest: &models.Installment{DueDate: time.Now().UTC().AddDate(0, 0, 10), Status: models.InstallmentPending}}
	router := gateRouter(repo, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/content", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if got := recorder.Header().Get(HeaderPaymentStanding); got != "" {
		t.Fatalf("expected no standing header, got %q", got)
	}
}

func TestPaymentGateBypassesAdmins(t *testing.T) {
	// An overdue ledger attached to an admin ID must never block.
	repo := &stubLedgerRepo{earliest: &models.Installment{DueDate: daysAgo(30), Status: models.InstallmentPending}}
	router := gateRouter(repo, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/content", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestPaymentGateAllowsFullyPaidLedger(t *testing.T) {
	router := gateRouter(&stubLedgerRepo{}, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/content", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}
