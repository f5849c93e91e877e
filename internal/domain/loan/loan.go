package loan

import (
	"fmt"
	"time"

	"loan-engine/internal/pkg/apperrors"
	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	StatusDraft           LoanStatus = "draft"
	StatusApproved        LoanStatus = "approved"
	StatusDisbursed       LoanStatus = "disbursed"
	StatusActiveRepayment LoanStatus = "active-repayment"
	StatusClosed          LoanStatus = "closed"
	StatusCancelled       LoanStatus = "cancelled"
)

// IsFrozen reports whether the persisted due dates are authoritative.
func (s LoanStatus) IsFrozen() bool {
	return s == StatusActiveRepayment
}

func (s LoanStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

type PlanType string

const (
	PlanSingle   PlanType = "single"
	PlanMultiEMI PlanType = "multi_emi"
)

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
)

type PenaltyTier struct {
	StartDay   int                 `json:"start_day"`
	EndDay     *int                `json:"end_day,omitempty"`
	Percent    decimal.Decimal     `json:"percent"`
	GSTPercent decimal.NullDecimal `json:"gst_percent"`
	Order      int                 `json:"order"`
}

// LoanPlan is the snapshot of plan terms captured on the loan. It must not change
// once the loan has been processed.
type LoanPlan struct {
	ID                    int64           `json:"id,omitempty"`
	Type                  PlanType        `json:"plan_type"`
	RepaymentDays         int             `json:"repayment_days"`
	InterestRatePerDay    decimal.Decimal `json:"interest_rate_per_day"`
	CalculateBySalaryDate bool            `json:"calculate_by_salary_date"`
	EMICount              int             `json:"emi_count,omitempty"`
	EMIFrequency          Frequency       `json:"emi_frequency,omitempty"`
	Fees                  []Fee           `json:"fees"`
	PenaltyTiers          []PenaltyTier   `json:"penalty_tiers"`
}

// InstallmentCount is the number of installments the plan asks for.
func (p LoanPlan) InstallmentCount() int {
	if p.Type == PlanMultiEMI {
		return p.EMICount
	}
	return 1
}

func (p LoanPlan) Validate() error {
	switch p.Type {
	case PlanSingle:
	case PlanMultiEMI:
		if p.EMICount <= 0 {
			return apperrors.NewValidationError("emi_count", "must be positive for multi-EMI plans")
		}
		if !p.CalculateBySalaryDate && !p.EMIFrequency.Valid() {
			return apperrors.NewValidationError("emi_frequency", fmt.Sprintf("unsupported frequency %q", p.EMIFrequency))
		}
	default:
		return apperrors.NewValidationError("plan_type", fmt.Sprintf("unsupported plan type %q", p.Type))
	}
	if p.RepaymentDays <= 0 {
		return apperrors.NewValidationError("repayment_days", "must be positive")
	}
	if p.InterestRatePerDay.IsNegative() {
		return apperrors.NewValidationError("interest_rate_per_day", "must not be negative")
	}
	for _, f := range p.Fees {
		if f.Percent.IsNegative() {
			return apperrors.NewValidationError("fees", fmt.Sprintf("fee %q has a negative percent", f.Name))
		}
	}
	for _, t := range p.PenaltyTiers {
		if t.StartDay < 1 || (t.EndDay != nil && *t.EndDay < t.StartDay) || t.Percent.IsNegative() {
			return apperrors.NewValidationError("penalty_tiers", fmt.Sprintf("tier starting on day %d is malformed", t.StartDay))
		}
	}
	return nil
}

type Installment struct {
	Number       int               `json:"number"`
	DueDate      time.Time         `json:"due_date"`
	AccrualStart time.Time         `json:"accrual_start"`
	Principal    money.Money       `json:"principal_component"`
	Interest     money.Money       `json:"interest_component"`
	Fee          money.Money       `json:"fee_component"`
	FeeGST       money.Money       `json:"fee_gst_component"`
	PenaltyBase  money.Money       `json:"penalty_base"`
	PenaltyGST   money.Money       `json:"penalty_gst"`
	PenaltyTotal money.Money       `json:"penalty_total"`
	Amount       money.Money       `json:"amount"`
	Status       InstallmentStatus `json:"status"`
	PaidAt       *time.Time        `json:"paid_at,omitempty"`
}

func (i Installment) IsPaid() bool {
	return i.Status == InstallmentPaid
}

// withoutPenalty strips the penalty fields, which depend on the current day and are
// never stored as authoritative.
func (i Installment) withoutPenalty() Installment {
	i.PenaltyBase, i.PenaltyGST, i.PenaltyTotal = money.Zero, money.Zero, money.Zero
	i.Amount = money.Sum(i.Principal, i.Interest, i.Fee, i.FeeGST)
	return i
}

// Payment is a row of the external payment ledger.
type Payment struct {
	InstallmentNumber int         `json:"installment_number"`
	Amount            money.Money `json:"amount"`
	PaidAt            time.Time   `json:"paid_at"`
}

type Loan struct {
	ID                int64
	BorrowerID        int64
	Principal         money.Money
	Status            LoanStatus
	Plan              LoanPlan
	DisbursedAt       *time.Time
	ProcessedAt       *time.Time
	LastExtensionDate *time.Time
	ExtensionCount    int
	Schedule          []Installment
	DueDates          []time.Time
	FeesBreakdown     FeeSplit
	DisbursalAmount   money.Money
	TotalRepayable    money.Money
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewLoan(borrowerID int64, principal money.Money, plan LoanPlan) (*Loan, error) {
	if borrowerID <= 0 {
		return nil, fmt.Errorf("%w: borrower id must be positive", apperrors.ErrInvalidArgument)
	}
	l := &Loan{
		BorrowerID: borrowerID,
		Principal:  principal,
		Status:     StatusDraft,
		Plan:       plan,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	l.Plan, _ = NormalizePlan(plan)
	return l, nil
}

// Validate rejects loan shapes for which no meaningful schedule exists.
func (l *Loan) Validate() error {
	if !l.Principal.IsPositive() {
		return apperrors.NewValidationError("principal", "must be greater than zero")
	}
	return l.Plan.Validate()
}

func (l *Loan) IsProcessed() bool {
	return l.ProcessedAt != nil
}

// BaseDate is the date schedules are anchored to: the processing date once
// processed, else the disbursal date, else today for a quote.
func (l *Loan) BaseDate(today time.Time) time.Time {
	switch {
	case l.ProcessedAt != nil:
		return dateOf(*l.ProcessedAt)
	case l.DisbursedAt != nil:
		return dateOf(*l.DisbursedAt)
	default:
		return dateOf(today)
	}
}

// AccrualBaseline is the first day interest accrues on. An extension moves it to
// the day after the extension.
func (l *Loan) AccrualBaseline(today time.Time) time.Time {
	if l.LastExtensionDate != nil {
		return dateOf(*l.LastExtensionDate).AddDate(0, 0, 1)
	}
	return l.BaseDate(today).AddDate(0, 0, 1)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b; negative when b is before a.
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}
