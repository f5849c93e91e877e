package borrower

import "context"

// Repository stores borrowers. A missing borrower is reported with an error
// wrapping apperrors.ErrNotFound.
type Repository interface {
	Save(ctx context.Context, borrower *Borrower) error

	FindByID(ctx context.Context, borrowerID int64) (*Borrower, error)

	UpdateSalaryDay(ctx context.Context, borrowerID int64, salaryDay *int) error
}
