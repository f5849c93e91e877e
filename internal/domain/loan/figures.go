package loan

import (
	"fmt"
	"strings"
	"time"

	"loan-engine/internal/pkg/apperrors"
	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

type CalculationState string

const (
	StateEditable CalculationState = "editable"
	StateFrozen   CalculationState = "frozen"
)

type CalculationInput struct {
	Loan *Loan
	// SalaryDay is the borrower's day of month salary arrives, 0 when unknown.
	SalaryDay int
	Payments  []Payment
	// FallbackPenaltyTiers are used when the plan snapshot carries none.
	FallbackPenaltyTiers []PenaltyTier
	Today                time.Time
}

type InterestSummary struct {
	RatePerDay        decimal.Decimal `json:"rate_per_day"`
	Amount            money.Money     `json:"amount"`
	ExhaustedDays     int             `json:"exhausted_days"`
	InterestTillToday money.Money     `json:"interest_till_today"`
}

type DisbursalSummary struct {
	Amount money.Money `json:"amount"`
}

type TotalSummary struct {
	Repayable     money.Money `json:"repayable"`
	BreakdownText string      `json:"breakdown_text"`
}

type RepaymentSummary struct {
	DateSource DateSource    `json:"date_source"`
	Schedule   []Installment `json:"schedule"`
}

type Figures struct {
	LoanID      int64            `json:"loan_id,omitempty"`
	State       CalculationState `json:"state"`
	AsOf        time.Time        `json:"as_of"`
	Principal   money.Money      `json:"principal"`
	Interest    InterestSummary  `json:"interest"`
	Fees        FeeSplit         `json:"fees"`
	Disbursal   DisbursalSummary `json:"disbursal"`
	Penalty     Penalty          `json:"penalty"`
	Total       TotalSummary     `json:"total"`
	Repayment   RepaymentSummary `json:"repayment"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
}

// BestEffort reports whether the figures were produced around a data defect.
func (f *Figures) BestEffort() bool {
	return len(f.Diagnostics) > 0
}

// Calculate produces the current figures of a loan. It is pure: the same input
// always yields the same output, and defects in the stored data are reported as
// diagnostics rather than errors. Only an invalid loan shape fails.
func Calculate(in CalculationInput) (*Figures, error) {
	if in.Loan == nil {
		return nil, fmt.Errorf("%w: loan is required", apperrors.ErrInvalidArgument)
	}
	if in.Today.IsZero() {
		return nil, fmt.Errorf("%w: calculation date is required", apperrors.ErrInvalidArgument)
	}
	l := *in.Loan
	if err := l.Validate(); err != nil {
		return nil, err
	}
	today := dateOf(in.Today)

	var diags []Diagnostic
	plan, corrected := NormalizePlan(l.Plan)
	for _, name := range corrected {
		diags = append(diags, Diagnostic{
			Code:     DiagFeeMethodCorrected,
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("fee %q has no valid application method; classified by name", name),
		})
	}
	l.Plan = plan

	fees := SplitFees(l.Principal, plan.Fees)
	disbursal := l.Principal.Sub(fees.DeductedTotal())
	if disbursal.IsNegative() {
		return nil, apperrors.NewValidationError("fees", fmt.Sprintf("deducted fees %s exceed principal %s", fees.DeductedTotal(), l.Principal))
	}

	dates, source, dateDiags := ResolveDueDates(&l, in.SalaryDay, today)
	diags = append(diags, dateDiags...)

	var extensionBaseline *time.Time
	if l.LastExtensionDate != nil {
		b := l.AccrualBaseline(today)
		extensionBaseline = &b
	}
	schedule, err := GenerateSchedule(ScheduleTerms{
		Principal:         l.Principal,
		RatePerDay:        plan.InterestRatePerDay,
		Fees:              fees,
		DueDates:          dates,
		AccrualStart:      l.BaseDate(today).AddDate(0, 0, 1),
		ExtensionBaseline: extensionBaseline,
	})
	if err != nil {
		return nil, err
	}
	schedule = MergeStatuses(schedule, l.Schedule, in.Payments)

	tiers := plan.PenaltyTiers
	if len(tiers) == 0 {
		tiers = in.FallbackPenaltyTiers
	}
	penalty := Penalty{}
	tiersReported := false
	for i, inst := range schedule {
		if inst.IsPaid() || !inst.DueDate.Before(today) {
			continue
		}
		if len(tiers) == 0 {
			if !tiersReported {
				diags = append(diags, Diagnostic{
					Code:     DiagPenaltyTiersMissing,
					Severity: SeverityWarn,
					Message:  "installments are overdue but no penalty tiers are configured; penalty is zero",
				})
				tiersReported = true
			}
			continue
		}
		p := CalculatePenalty(l.Principal, tiers, inst.DueDate, today)
		inst.PenaltyBase, inst.PenaltyGST, inst.PenaltyTotal = p.Base, p.GST, p.Total
		inst.Amount = money.Sum(inst.Principal, inst.Interest, inst.Fee, inst.FeeGST, inst.PenaltyTotal)
		schedule[i] = inst

		penalty.Base = penalty.Base.Add(p.Base)
		penalty.GST = penalty.GST.Add(p.GST)
		penalty.Total = penalty.Total.Add(p.Total)
		if p.DaysOverdue > penalty.DaysOverdue {
			penalty.DaysOverdue = p.DaysOverdue
		}
	}

	interest := summarizeInterest(schedule, l.Principal, plan.InterestRatePerDay, today)

	repayable := money.Zero
	for _, inst := range schedule {
		repayable = repayable.Add(inst.Amount)
	}

	state := StateEditable
	if l.Status.IsFrozen() {
		state = StateFrozen
	}

	return &Figures{
		LoanID:    l.ID,
		State:     state,
		AsOf:      today,
		Principal: l.Principal,
		Interest:  interest,
		Fees:      fees,
		Disbursal: DisbursalSummary{Amount: disbursal},
		Penalty:   penalty,
		Total: TotalSummary{
			Repayable:     repayable,
			BreakdownText: breakdownText(l.Principal, interest.Amount, fees, penalty.Total, repayable),
		},
		Repayment: RepaymentSummary{
			DateSource: source,
			Schedule:   schedule,
		},
		Diagnostics: diags,
	}, nil
}

// summarizeInterest totals the scheduled interest and works out how much of it has
// accrued by today, using each installment's own period and outstanding balance.
func summarizeInterest(schedule []Installment, principal money.Money, rate decimal.Decimal, today time.Time) InterestSummary {
	summary := InterestSummary{RatePerDay: rate}
	outstanding := principal
	for _, inst := range schedule {
		summary.Amount = summary.Amount.Add(inst.Interest)

		end := inst.DueDate
		if today.Before(end) {
			end = today
		}
		if days := InclusiveDays(inst.AccrualStart, end); days > 0 {
			summary.ExhaustedDays += days
			summary.InterestTillToday = summary.InterestTillToday.Add(AccrueInterest(outstanding, rate, inst.AccrualStart, end))
		}
		outstanding = outstanding.Sub(inst.Principal)
	}
	return summary
}

func breakdownText(principal, interest money.Money, fees FeeSplit, penalty, total money.Money) string {
	parts := []string{
		fmt.Sprintf("principal %s", principal),
		fmt.Sprintf("interest %s", interest),
	}
	for _, f := range fees.AddToTotal {
		parts = append(parts, fmt.Sprintf("%s %s (incl. GST %s)", strings.ToLower(f.Name), f.Total, f.GSTAmount))
	}
	if !penalty.IsZero() {
		parts = append(parts, fmt.Sprintf("penalty %s", penalty))
	}
	return strings.Join(parts, " + ") + " = " + total.String()
}
