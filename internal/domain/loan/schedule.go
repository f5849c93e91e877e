package loan

import (
	"fmt"
	"time"

	"loan-engine/internal/pkg/apperrors"
	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

// ScheduleTerms are the inputs for allocating amounts over a set of due dates.
type ScheduleTerms struct {
	Principal  money.Money
	RatePerDay decimal.Decimal
	Fees       FeeSplit
	DueDates   []time.Time
	// AccrualStart is the first day of the first installment's interest period.
	AccrualStart time.Time
	// ExtensionBaseline, when set, is the first day interest accrues after a tenor
	// extension. It overrides the start of every period that ends on or after it;
	// periods that closed before the extension keep their own start.
	ExtensionBaseline *time.Time
}

// GenerateSchedule allocates principal, fee and interest to each due date.
// Principal and fees are split evenly with the rounding remainder on the last
// installment; interest is accrued per period on the principal still outstanding.
func GenerateSchedule(terms ScheduleTerms) ([]Installment, error) {
	n := len(terms.DueDates)
	if n == 0 {
		return nil, apperrors.NewValidationError("due_dates", "schedule needs at least one due date")
	}
	if terms.Principal.IsNegative() {
		return nil, apperrors.NewValidationError("principal", "must not be negative")
	}

	principalParts, err := terms.Principal.Split(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}
	feeParts, err := terms.Fees.RepayableBase().Split(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}
	gstParts, err := terms.Fees.RepayableGST().Split(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}

	schedule := make([]Installment, 0, n)
	outstanding := terms.Principal
	periodStart := dateOf(terms.AccrualStart)

	for i, rawDue := range terms.DueDates {
		due := dateOf(rawDue)
		start := periodStart
		if terms.ExtensionBaseline != nil {
			baseline := dateOf(*terms.ExtensionBaseline)
			if baseline.After(start) && !due.Before(baseline) {
				start = baseline
			}
		}

		interest := AccrueInterest(outstanding, terms.RatePerDay, start, due)
		inst := Installment{
			Number:       i + 1,
			DueDate:      due,
			AccrualStart: start,
			Principal:    principalParts[i],
			Interest:     interest,
			Fee:          feeParts[i],
			FeeGST:       gstParts[i],
			Status:       InstallmentPending,
		}
		inst.Amount = money.Sum(inst.Principal, inst.Interest, inst.Fee, inst.FeeGST)
		schedule = append(schedule, inst)

		outstanding = outstanding.Sub(principalParts[i])
		periodStart = due.AddDate(0, 0, 1)
	}

	if !outstanding.IsZero() {
		return nil, fmt.Errorf("%w: schedule leaves %s principal unallocated", apperrors.ErrInternalServer, outstanding)
	}
	return schedule, nil
}
