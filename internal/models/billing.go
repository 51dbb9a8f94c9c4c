package models

import "time"

// InstallmentStatus is the lifecycle state of a tuition installment.
// The only transition is PENDING -> PAID; PAID is terminal.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// Installment is one scheduled tuition payment obligation.
type Installment struct {
	ID        string            `db:"id" json:"id"`
	UserID    string            `db:"user_id" json:"user_id"`
	Month     int               `db:"month" json:"month"`
	Year      int               `db:"year" json:"year"`
	DueDate   time.Time         `db:"due_date" json:"due_date"`
	Status    InstallmentStatus `db:"status" json:"status"`
	PaidAt    *time.Time        `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// PaymentStanding classifies a student's current payment situation.
type PaymentStanding string

const (
	StandingActive       PaymentStanding = "ACTIVE"
	StandingDueToday     PaymentStanding = "DUE_TODAY"
	StandingOverdueGrace PaymentStanding = "OVERDUE_GRACE"
	StandingBlocked      PaymentStanding = "BLOCKED"
)

// PaymentStatus is the point-in-time classification of a student's ledger.
// ReferenceDueDate points at the earliest unpaid installment when one exists.
type PaymentStatus struct {
	Standing         PaymentStanding `json:"standing"`
	ReferenceDueDate *time.Time      `json:"reference_due_date,omitempty"`
	DaysLate         int             `json:"days_late"`
	AsOf             time.Time       `json:"as_of"`
}

// Blocked reports whether student-facing content must be withheld.
func (s PaymentStatus) Blocked() bool {
	return s.Standing == StandingBlocked
}

// Warning reports whether a non-blocking payment notice should be shown.
func (s PaymentStatus) Warning() bool {
	return s.Standing == StandingDueToday || s.Standing == StandingOverdueGrace
}
