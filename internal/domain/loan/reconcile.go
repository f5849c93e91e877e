package loan

import (
	"fmt"
	"sort"
	"time"

	"loan-engine/internal/pkg/apperrors"
)

type DateSource string

const (
	DateSourceGenerated      DateSource = "generated"
	DateSourceStoredSchedule DateSource = "stored_schedule"
	DateSourceStoredDueDates DateSource = "stored_due_dates"
	DateSourceRecomputed     DateSource = "recomputed_fallback"
)

// Trusted reports whether the dates came from storage.
func (s DateSource) Trusted() bool {
	return s == DateSourceStoredSchedule || s == DateSourceStoredDueDates
}

type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

const (
	DiagFeeMethodCorrected     = "fee_method_corrected"
	DiagPenaltyTiersMissing    = "penalty_tiers_missing"
	DiagScheduleLengthMismatch = "schedule_length_mismatch"
	DiagStoredDatesMissing     = "stored_dates_missing"
	DiagSalaryDayMissing       = "salary_day_missing"
	DiagProcessedAtMissing     = "processed_at_missing"
)

// Diagnostic reports a data defect the calculation worked around.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ResolveDueDates decides where the due dates come from. Editable loans always
// regenerate them from the plan. Frozen loans use the stored schedule, then the
// stored due-date list, and regenerate only as a last resort.
func ResolveDueDates(l *Loan, salaryDay int, today time.Time) ([]time.Time, DateSource, []Diagnostic) {
	var diags []Diagnostic
	if !l.Status.IsFrozen() {
		dates, d := generateDueDates(l, salaryDay, today)
		return dates, DateSourceGenerated, append(diags, d...)
	}

	planCount := l.Plan.InstallmentCount()
	if len(l.Schedule) > 0 {
		stored := sortedByNumber(l.Schedule)
		dates := make([]time.Time, len(stored))
		for i, inst := range stored {
			dates[i] = dateOf(inst.DueDate)
		}
		if len(dates) != planCount {
			diags = append(diags, Diagnostic{
				Code:     DiagScheduleLengthMismatch,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("stored schedule has %d installments but plan expects %d; using stored schedule", len(dates), planCount),
			})
		}
		return dates, DateSourceStoredSchedule, diags
	}

	if len(l.DueDates) > 0 {
		dates := make([]time.Time, len(l.DueDates))
		for i, d := range l.DueDates {
			dates[i] = dateOf(d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		if len(dates) != planCount {
			diags = append(diags, Diagnostic{
				Code:     DiagScheduleLengthMismatch,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("stored due dates list %d entries but plan expects %d; using stored dates", len(dates), planCount),
			})
		}
		return dates, DateSourceStoredDueDates, diags
	}

	dates, d := generateDueDates(l, salaryDay, today)
	diags = append(diags, d...)
	diags = append(diags, Diagnostic{
		Code:     DiagStoredDatesMissing,
		Severity: SeverityError,
		Message:  "frozen loan has neither a stored schedule nor stored due dates; dates recomputed from plan",
	})
	return dates, DateSourceRecomputed, diags
}

func generateDueDates(l *Loan, salaryDay int, today time.Time) ([]time.Time, []Diagnostic) {
	var diags []Diagnostic
	if l.Status.IsFrozen() && l.ProcessedAt == nil {
		diags = append(diags, Diagnostic{
			Code:     DiagProcessedAtMissing,
			Severity: SeverityError,
			Message:  "frozen loan has no processing date; anchoring schedule to the disbursal date or today",
		})
	}
	base := l.BaseDate(today)
	plan := l.Plan
	if plan.Type != PlanMultiEMI {
		return FixedDueDates(base, plan.RepaymentDays, 1, FrequencyMonthly), diags
	}
	if plan.CalculateBySalaryDate {
		if salaryDay >= 1 && salaryDay <= 31 {
			return SalaryDueDates(base, salaryDay, plan.RepaymentDays, plan.EMICount), diags
		}
		diags = append(diags, Diagnostic{
			Code:     DiagSalaryDayMissing,
			Severity: SeverityWarn,
			Message:  "plan is anchored to the salary date but the borrower has none; using fixed monthly dates",
		})
		return FixedDueDates(base, plan.RepaymentDays, plan.EMICount, FrequencyMonthly), diags
	}
	return FixedDueDates(base, plan.RepaymentDays, plan.EMICount, plan.EMIFrequency), diags
}

// MergeStatuses carries payment state onto a freshly computed schedule. An
// installment is paid when either the stored schedule or the payment ledger says
// so; recalculation never turns a paid installment back to pending.
func MergeStatuses(schedule []Installment, stored []Installment, payments []Payment) []Installment {
	paid := make(map[int]*time.Time)
	for _, inst := range stored {
		if inst.IsPaid() {
			paid[inst.Number] = inst.PaidAt
		}
	}
	for _, p := range payments {
		at := p.PaidAt
		if existing, ok := paid[p.InstallmentNumber]; !ok || existing == nil {
			paid[p.InstallmentNumber] = &at
		}
	}

	merged := make([]Installment, len(schedule))
	for i, inst := range schedule {
		if paidAt, ok := paid[inst.Number]; ok {
			inst.Status = InstallmentPaid
			inst.PaidAt = paidAt
		} else if inst.Status == "" {
			inst.Status = InstallmentPending
		}
		merged[i] = inst
	}
	return merged
}

// ApplyExtension extends the tenor of a frozen loan by days starting at at. Every
// pending installment due on or after the extension date moves by days; paid and
// already-missed installments keep their dates. The interest baseline moves to the
// day after the extension. A loan with nothing left to move is rejected and left
// untouched.
func (l *Loan) ApplyExtension(days int, at time.Time) error {
	if !l.Status.IsFrozen() {
		return fmt.Errorf("%w: loan %d has status %s", apperrors.ErrLoanNotFrozen, l.ID, l.Status)
	}
	if days <= 0 {
		return apperrors.NewValidationError("days", "extension must be at least one day")
	}
	extDate := dateOf(at)
	if !l.hasExtendableInstallment(extDate) {
		return apperrors.NewValidationError("days", "no pending installment is due on or after "+extDate.Format(time.DateOnly))
	}

	schedule := make([]Installment, len(l.Schedule))
	for i, inst := range l.Schedule {
		if !inst.IsPaid() && !dateOf(inst.DueDate).Before(extDate) {
			inst.DueDate = dateOf(inst.DueDate).AddDate(0, 0, days)
		}
		schedule[i] = inst
	}
	l.Schedule = schedule

	if len(l.DueDates) > 0 {
		paidDue := make(map[time.Time]bool)
		for _, inst := range l.Schedule {
			if inst.IsPaid() {
				paidDue[dateOf(inst.DueDate)] = true
			}
		}
		dates := make([]time.Time, len(l.DueDates))
		for i, d := range l.DueDates {
			d = dateOf(d)
			if !paidDue[d] && !d.Before(extDate) {
				d = d.AddDate(0, 0, days)
			}
			dates[i] = d
		}
		l.DueDates = dates
	}

	l.LastExtensionDate = &extDate
	l.ExtensionCount++
	return nil
}

func (l *Loan) hasExtendableInstallment(extDate time.Time) bool {
	if len(l.Schedule) > 0 {
		for _, inst := range l.Schedule {
			if !inst.IsPaid() && !dateOf(inst.DueDate).Before(extDate) {
				return true
			}
		}
		return false
	}
	for _, d := range l.DueDates {
		if !dateOf(d).Before(extDate) {
			return true
		}
	}
	return false
}

func sortedByNumber(schedule []Installment) []Installment {
	sorted := make([]Installment, len(schedule))
	copy(sorted, schedule)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	return sorted
}
