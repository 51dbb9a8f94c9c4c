package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-api/internal/models"
)

const installmentColumns = "id, user_id, month, year, due_date, status, paid_at, created_at"

// BillingRepository manages persistence for the tuition installment ledger.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs a BillingRepository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// CreateBatch inserts a full installment schedule inside one transaction so
// a failure cannot leave a partial schedule behind.
func (r *BillingRepository) CreateBatch(ctx context.Context, installments []models.Installment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin installment batch: %w", err)
	}
	if err := r.CreateBatchTx(ctx, tx, installments); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit installment batch: %w", err)
	}
	return nil
}

// CreateBatchTx inserts the schedule within an existing transaction.
func (r *BillingRepository) CreateBatchTx(ctx context.Context, tx *sqlx.Tx, installments []models.Installment) error {
	const query = `INSERT INTO installments (id, user_id, month, year, due_date, status, paid_at, created_at)
        VALUES (:id, :user_id, :month, :year, :due_date, :status, :paid_at, :created_at)`
	now := time.Now().UTC()
	for i := range installments {
		if installments[i].ID == "" {
			installments[i].ID = uuid.NewString()
		}
		if installments[i].CreatedAt.IsZero() {
			installments[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, installments[i]); err != nil {
			return fmt.Errorf("insert installment %d/%d: %w", i+1, len(installments), err)
		}
	}
	return nil
}

// FindByID returns one installment.
func (r *BillingRepository) FindByID(ctx context.Context, id string) (*models.Installment, error) {
	query := fmt.Sprintf("SELECT %s FROM installments WHERE id = $1", installmentColumns)
	var inst models.Installment
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindEarliestPending returns the pending installment with the smallest due
// date for the user, or sql.ErrNoRows when the ledger is fully paid or empty.
func (r *BillingRepository) FindEarliestPending(ctx context.Context, userID string) (*models.Installment, error) {
	query := fmt.Sprintf("SELECT %s FROM installments WHERE user_id = $1 AND status = $2 ORDER BY due_date ASC LIMIT 1", installmentColumns)
	var inst models.Installment
	if err := r.db.GetContext(ctx, &inst, query, userID, models.InstallmentPending); err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListByUser returns the full ledger ordered by due date.
func (r *BillingRepository) ListByUser(ctx context.Context, userID string) ([]models.Installment, error) {
	query := fmt.Sprintf("SELECT %s FROM installments WHERE user_id = $1 ORDER BY due_date ASC", installmentColumns)
	var installments []models.Installment
	if err := r.db.SelectContext(ctx, &installments, query, userID); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return installments, nil
}

// CountByUser returns how many installments exist for the user.
func (r *BillingRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM installments WHERE user_id = $1", userID); err != nil {
		return 0, fmt.Errorf("count installments: %w", err)
	}
	return count, nil
}

// MarkPaid flips a pending installment to paid. The status guard makes the
// write a no-op for installments already paid, preserving the original
// paid_at. It reports whether a row actually changed.
func (r *BillingRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	const query = `UPDATE installments SET status = $2, paid_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.InstallmentPaid, paidAt, models.InstallmentPending)
	if err != nil {
		return false, fmt.Errorf("mark installment paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark installment paid: %w", err)
	}
	return affected > 0, nil
}
