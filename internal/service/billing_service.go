package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
	"github.com/noah-isme/escola-api/pkg/export"
)

type billingRepository interface {
	CreateBatch(ctx context.Context, installments []models.Installment) error
	FindByID(ctx context.Context, id string) (*models.Installment, error)
	FindEarliestPending(ctx context.Context, userID string) (*models.Installment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Installment, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BillingConfig tunes schedule generation and standing classification.
type BillingConfig struct {
	InstallmentCount int
	StrideDays       int
	GraceDays        int
	CacheTTL         time.Duration
}

// BillingService owns the tuition installment ledger: schedule generation at
// enrollment, point-in-time standing classification, and payment recording.
type BillingService struct {
	repo   billingRepository
	audit  auditWriter
	cache  *CacheService
	logger *zap.Logger
	config BillingConfig
}

// NewBillingService constructs a BillingService.
func NewBillingService(repo billingRepository, audit auditWriter, cache *CacheService, logger *zap.Logger, config BillingConfig) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.InstallmentCount <= 0 {
		config.InstallmentCount = 12
	}
	if config.StrideDays <= 0 {
		config.StrideDays = 30
	}
	if config.GraceDays <= 0 {
		config.GraceDays = 7
	}
	return &BillingService{repo: repo, audit: audit, cache: cache, logger: logger, config: config}
}

// BuildSchedule computes the installment rows for an enrollment date without
// touching storage. Due dates advance by a fixed day stride rather than
// calendar months, so month/year labels follow each computed due date.
func BuildSchedule(userID string, enrolledAt time.Time, count, strideDays int) []models.Installment {
	first := truncateToDay(enrolledAt)
	installments := make([]models.Installment, 0, count)
	for i := 0; i < count; i++ {
		due := first.AddDate(0, 0, strideDays*i)
		installments = append(installments, models.Installment{
			UserID:  userID,
			Month:   int(due.Month()),
			Year:    due.Year(),
			DueDate: due,
			Status:  models.InstallmentPending,
		})
	}
	return installments
}

// GenerateSchedule creates the full installment schedule for a student. The
// batch insert runs in a single transaction; a second call for a user that
// already has a ledger is rejected.
func (s *BillingService) GenerateSchedule(ctx context.Context, userID string, enrolledAt time.Time) ([]models.Installment, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	if enrolledAt.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment date is required")
	}

	existing, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect ledger")
	}
	if existing > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "installment schedule already exists for student")
	}

	installments := BuildSchedule(userID, enrolledAt, s.config.InstallmentCount, s.config.StrideDays)
	if err := s.repo.CreateBatch(ctx, installments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create installment schedule")
	}

	s.invalidateStatus(ctx, userID)
	s.logger.Info("installment schedule generated",
		zap.String("user_id", userID),
		zap.Int("installments", len(installments)),
		zap.Time("first_due", installments[0].DueDate),
	)
	return installments, nil
}

// ClassifyInstallment derives the payment standing from the earliest pending
// installment. It is a pure function: nil means the ledger is fully paid or
// absent. Comparisons happen at date granularity.
func ClassifyInstallment(inst *models.Installment, asOf time.Time, graceDays int) models.PaymentStatus {
	status := models.PaymentStatus{Standing: models.StandingActive, AsOf: truncateToDay(asOf)}
	if inst == nil {
		return status
	}

	due := truncateToDay(inst.DueDate)
	day := status.AsOf
	status.ReferenceDueDate = &due

	switch {
	case day.Before(due):
		status.Standing = models.StandingActive
	case day.Equal(due):
		status.Standing = models.StandingDueToday
	case !day.After(due.AddDate(0, 0, graceDays)):
		status.Standing = models.StandingOverdueGrace
		status.DaysLate = daysBetween(due, day)
	default:
		status.Standing = models.StandingBlocked
		status.DaysLate = daysBetween(due, day)
	}
	return status
}

// Status classifies a student's standing as of the given date. The result is
// a pure function of the stored ledger; repeated calls with the same date are
// idempotent. Reads go through the cache when one is configured.
func (s *BillingService) Status(ctx context.Context, userID string, asOf time.Time) (models.PaymentStatus, error) {
	key := s.statusKey(userID, asOf)
	var cached models.PaymentStatus
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	inst, err := s.repo.FindEarliestPending(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.PaymentStatus{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}

	status := ClassifyInstallment(inst, asOf, s.config.GraceDays)
	_ = s.cache.Set(ctx, key, status, s.config.CacheTTL)
	return status, nil
}

// MarkPaid flips an installment to paid. Marking an installment that is
// already paid is a no-op: the stored paid_at is never overwritten.
func (s *BillingService) MarkPaid(ctx context.Context, installmentID string, paidAt time.Time, actor *models.JWTClaims) (*models.Installment, error) {
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	paidAt = truncateToDay(paidAt)

	inst, err := s.repo.FindByID(ctx, installmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "installment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installment")
	}

	changed, err := s.repo.MarkPaid(ctx, installmentID, paidAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark installment paid")
	}
	if !changed {
		// Already paid; return the stored record untouched.
		return inst, nil
	}

	inst.Status = models.InstallmentPaid
	inst.PaidAt = &paidAt

	s.invalidateStatus(ctx, inst.UserID)

	if s.audit != nil {
		var actorID *string
		if actor != nil {
			actorID = &actor.UserID
		}
		payload := []byte(fmt.Sprintf(`{"installment_id":%q,"paid_at":%q}`, inst.ID, paidAt.Format("2006-01-02")))
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     actorID,
			Action:     models.AuditActionMarkPaid,
			Resource:   "installments",
			ResourceID: &inst.ID,
			NewValues:  payload,
		}); err != nil {
			s.logger.Warn("failed to record payment audit log", zap.Error(err))
		}
	}

	return inst, nil
}

// Statement returns the full ledger ordered by due date.
func (s *BillingService) Statement(ctx context.Context, userID string) ([]models.Installment, error) {
	installments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list installments")
	}
	return installments, nil
}

// ExportStatement renders the ledger as CSV or PDF bytes.
func (s *BillingService) ExportStatement(ctx context.Context, userID, format string) ([]byte, string, error) {
	installments, err := s.Statement(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"#", "Month", "Year", "Due Date", "Status", "Paid At"}
	rows := make([]map[string]string, 0, len(installments))
	for i, inst := range installments {
		paidAt := ""
		if inst.PaidAt != nil {
			paidAt = inst.PaidAt.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"#":        strconv.Itoa(i + 1),
			"Month":    strconv.Itoa(inst.Month),
			"Year":     strconv.Itoa(inst.Year),
			"Due Date": inst.DueDate.Format("2006-01-02"),
			"Status":   string(inst.Status),
			"Paid At":  paidAt,
		})
	}
	dataset := export.Dataset{Headers: headers, Rows: rows}

	switch format {
	case "", "csv":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, "Tuition Statement")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *BillingService) statusKey(userID string, asOf time.Time) string {
	return fmt.Sprintf("billing:status:%s:%s", userID, truncateToDay(asOf).Format("2006-01-02"))
}

func (s *BillingService) invalidateStatus(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("billing:status:%s:*", userID)); err != nil {
		s.logger.Warn("failed to invalidate status cache", zap.String("user_id", userID), zap.Error(err))
	}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
