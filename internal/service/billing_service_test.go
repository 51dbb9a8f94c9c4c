package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-api/internal/models"
	appErrors "github.com/noah-isme/escola-api/pkg/errors"
)

type mockBillingRepo struct {
	installments        []models.Installment
	earliest            *models.Installment
	earliestErr         error
	count               int
	countErr            error
	createBatchErr      error
	created             []models.Installment
	markPaidChanged     bool
	markPaidErr         error
	markPaidCalls       int
	findEarliestCalls   int
	findByIDInstallment *models.Installment
	findByIDErr         error
}

func (m *mockBillingRepo) CreateBatch(_ context.Context, installments []models.Installment) error {
	if m.createBatchErr != nil {
		return m.createBatchErr
	}
	m.created = installments
	return nil
}

func (m *mockBillingRepo) FindByID(_ context.Context, _ string) (*models.Installment, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	inst := *m.findByIDInstallment
	return &inst, nil
}

func (m *mockBillingRepo) FindEarliestPending(_ context.Context, _ string) (*models.Installment, error) {
	m.findEarliestCalls++
	if m.earliestErr != nil {
		return nil, m.earliestErr
	}
	return m.earliest, nil
}

func (m *mockBillingRepo) ListByUser(_ context.Context, _ string) ([]models.Installment, error) {
	return m.installments, nil
}

func (m *mockBillingRepo) CountByUser(_ context.Context, _ string) (int, error) {
	return m.count, m.countErr
}

func (m *mockBillingRepo) MarkPaid(_ context.Context, _ string, _ time.Time) (bool, error) {
	m.markPaidCalls++
	return m.markPaidChanged, m.markPaidErr
}

type mockAuditWriter struct {
	logs []*models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = nil
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildScheduleStride(t *testing.T) {
	enrolled := time.Date(2024, time.January, 15, 14, 30, 0, 0, time.UTC)
	schedule := BuildSchedule("student-1", enrolled, 12, 30)

	require.Len(t, schedule, 12)
	for i, inst := range schedule {
		assert.Equal(t, "student-1", inst.UserID)
		assert.Equal(t, models.InstallmentPending, inst.Status)
		assert.Equal(t, date(2024, time.January, 15).AddDate(0, 0, 30*i), inst.DueDate, "installment %d", i+1)
		assert.Equal(t, int(inst.DueDate.Month()), inst.Month)
		assert.Equal(t, inst.DueDate.Year(), inst.Year)
	}

	// 30-day stride drifts off the calendar month: the second due date is
	// February 14, not February 15.
	assert.Equal(t, date(2024, time.February, 14), schedule[1].DueDate)
	assert.Equal(t, date(2024, time.December, 10), schedule[11].DueDate)
}

func TestGenerateScheduleRejectsExistingLedger(t *testing.T) {
	repo := &mockBillingRepo{count: 12}
	svc := NewBillingService(repo, nil, nil, zap.NewNop(), BillingConfig{})

	_, err := svc.GenerateSchedule(context.Background(), "student-1", date(2024, time.January, 15))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestGenerateScheduleCreatesTwelveRows(t *testing.T) {
	repo := &mockBillingRepo{}
	svc := NewBillingService(repo, nil, nil, zap.NewNop(), BillingConfig{})

	schedule, err := svc.GenerateSchedule(context.Background(), "student-1", date(2024, time.January, 15))
	require.NoError(t, err)
	require.Len(t, schedule, 12)
	assert.Len(t, repo.created, 12)
	assert.Equal(t, date(2024, time.January, 15), schedule[0].DueDate)
}

func TestClassifyInstallmentBoundaries(t *testing.T) {
	due := date(2024, time.March, 1)
	inst := &models.Installment{DueDate: due, Status: models.InstallmentPending}

	cases := []struct {
		name     string
		asOf     time.Time
		standing models.PaymentStanding
		daysLate int
	}{
		{"day before due", date(2024, time.February, 29), models.StandingActive, 0},
		{"due date itself", date(2024, time.March, 1), models.StandingDueToday, 0},
		{"first day late", date(2024, time.March, 2), models.StandingOverdueGrace, 1},
		{"last grace day", date(2024, time.March, 8), models.StandingOverdueGrace, 7},
		{"past grace", date(2024, time.March, 9), models.StandingBlocked, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := ClassifyInstallment(inst, tc.asOf, 7)
			assert.Equal(t, tc.standing, status.Standing)
			assert.Equal(t, tc.daysLate, status.DaysLate)
			require.NotNil(t, status.ReferenceDueDate)
			assert.Equal(t, due, *status.ReferenceDueDate)
		})
	}
}

func TestClassifyInstallmentNilIsActive(t *testing.T) {
	status := ClassifyInstallment(nil, date(2024, time.June, 1), 7)
	assert.Equal(t, models.StandingActive, status.Standing)
	assert.Nil(t, status.ReferenceDueDate)
	assert.False(t, status.Blocked())
	assert.False(t, status.Warning())
}

func TestClassifyInstallmentIgnoresTimeOfDay(t *testing.T) {
	inst := &models.Installment{DueDate: time.Date(2024, time.March, 1, 23, 59, 0, 0, time.UTC)}
	asOf := time.Date(2024, time.March, 1, 0, 1, 0, 0, time.UTC)
	status := ClassifyInstallment(inst, asOf, 7)
	assert.Equal(t, models.StandingDueToday, status.Standing)
}

func TestStatusFullyPaidLedgerIsActive(t *testing.T) {
	repo := &mockBillingRepo{earliestErr: sql.ErrNoRows}
	svc := NewBillingService(repo, nil, nil, zap.NewNop(), BillingConfig{})

	status, err := svc.Status(context.Background(), "student-1", date(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, models.StandingActive, status.Standing)
}

func TestStatusUsesCacheOnSecondCall(t *testing.T) {
	due := date(2024, time.March, 1)
	repo := &mockBillingRepo{earliest: &models.Installment{DueDate: due, Status: models.InstallmentPending}}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewBillingService(repo, nil, cacheSvc, zap.NewNop(), BillingConfig{})

	asOf := date(2024, time.March, 5)
	first, err := svc.Status(context.Background(), "student-1", asOf)
	require.NoError(t, err)
	second, err := svc.Status(context.Background(), "student-1", asOf)
	require.NoError(t, err)

	assert.Equal(t, first.Standing, second.Standing)
	assert.Equal(t, 1, repo.findEarliestCalls)
}

func TestMarkPaidSettlesPendingInstallment(t *testing.T) {
	stored := &models.Installment{
		ID:      "inst-1",
		UserID:  "student-1",
		DueDate: date(2024, time.March, 1),
		Status:  models.InstallmentPending,
	}
	repo := &mockBillingRepo{findByIDInstallment: stored, markPaidChanged: true}
	audit := &mockAuditWriter{}
	svc := NewBillingService(repo, audit, nil, zap.NewNop(), BillingConfig{})

	paidAt := date(2024, time.March, 3)
	actor := &models.JWTClaims{UserID: "admin-1"}
	result, err := svc.MarkPaid(context.Background(), "inst-1", paidAt, actor)
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentPaid, result.Status)
	require.NotNil(t, result.PaidAt)
	assert.Equal(t, paidAt, *result.PaidAt)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionMarkPaid, audit.logs[0].Action)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	originalPaidAt := date(2024, time.February, 10)
	stored := &models.Installment{
		ID:      "inst-1",
		UserID:  "student-1",
		DueDate: date(2024, time.February, 1),
		Status:  models.InstallmentPaid,
		PaidAt:  &originalPaidAt,
	}
	repo := &mockBillingRepo{findByIDInstallment: stored, markPaidChanged: false}
	audit := &mockAuditWriter{}
	svc := NewBillingService(repo, audit, nil, zap.NewNop(), BillingConfig{})

	result, err := svc.MarkPaid(context.Background(), "inst-1", date(2024, time.March, 3), nil)
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentPaid, result.Status)
	require.NotNil(t, result.PaidAt)
	assert.Equal(t, originalPaidAt, *result.PaidAt)
	assert.Empty(t, audit.logs)
}

func TestMarkPaidUnknownInstallment(t *testing.T) {
	repo := &mockBillingRepo{findByIDErr: sql.ErrNoRows}
	svc := NewBillingService(repo, nil, nil, zap.NewNop(), BillingConfig{})

	_, err := svc.MarkPaid(context.Background(), "missing", time.Time{}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.markPaidCalls)
}

func TestMarkPaidAdvancesStatusToNextInstallment(t *testing.T) {
	// After settling the overdue installment the earliest pending one is a
	// month out, so the standing flips back to active.
	repo := &mockBillingRepo{earliest: &models.Installment{
		DueDate: date(2024, time.April, 1),
		Status:  models.InstallmentPending,
	}}
	svc := NewBillingService(repo, nil, nil, zap.NewNop(), BillingConfig{})

	status, err := svc.Status(context.Background(), "student-1", date(2024, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, models.StandingActive, status.Standing)
}

func TestExportStatementFormats(t *testing.T) {
	paidAt := date(2024, time.January, 20)
	repo := &mockBillingRepo{installments: []models.Installment{
		{ID: "i1", Month: 1, Year: 2024, DueDate: date(2024, time.January, 15), Status: models.InstallmentPaid, PaidAt: &paidAt},
		{ID: "i2", Month: 2, Year: 2024, DueDate: date(2024, time.February, 14), Status: models.InstallmentPending},
	}}
	svc := NewBillingService(repo, nil, nil, zap.NewNop(), BillingConfig{})

	csvPayload, contentType, err := svc.ExportStatement(context.Background(), "student-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(csvPayload), "2024-01-15")
	assert.Contains(t, string(csvPayload), "PENDING")

	pdfPayload, contentType, err := svc.ExportStatement(context.Background(), "student-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.NotEmpty(t, pdfPayload)

	_, _, err = svc.ExportStatement(context.Background(), "student-1", "xml")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
