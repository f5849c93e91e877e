package loan

import (
	"context"

	"loan-engine/internal/pkg/money"
)

// DerivedFigures are the calculated values persisted back onto a frozen loan.
// A nil Schedule leaves the stored schedule untouched.
type DerivedFigures struct {
	FeesBreakdown   FeeSplit
	DisbursalAmount money.Money
	TotalRepayable  money.Money
	Schedule        []Installment
}

// Repository is the loan store. Lookups of a missing loan return an error wrapping
// apperrors.ErrNotFound. Every update is conditional on expectedVersion, bumps the
// version on success and returns an error wrapping apperrors.ErrConflict when the
// row changed underneath the caller.
type Repository interface {
	CreateLoan(ctx context.Context, loan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	UpdatePlan(ctx context.Context, loanID, expectedVersion int64, plan LoanPlan) error

	// UpdateLoan persists status, dates, schedule, extension and derived figures.
	UpdateLoan(ctx context.Context, loan *Loan, expectedVersion int64) error

	UpdateDerivedFigures(ctx context.Context, loanID, expectedVersion int64, figures DerivedFigures) error

	GetPayments(ctx context.Context, loanID int64) ([]Payment, error)

	GetPenaltyTiersByPlanID(ctx context.Context, planID int64) ([]PenaltyTier, error)

	ListActiveRepaymentLoanIDs(ctx context.Context) ([]int64, error)
}
