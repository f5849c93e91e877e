package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-engine/internal/event"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"
	"loan-engine/internal/pkg/money"
)

// SalaryDayProvider returns the borrower's salary day of month, 0 when unset. A
// missing borrower is reported as apperrors.ErrNotFound.
type SalaryDayProvider interface {
	SalaryDay(ctx context.Context, borrowerID int64) (int, error)
}

type LoanService interface {
	CreateLoan(ctx context.Context, borrowerID int64, principal money.Money, plan LoanPlan) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	AttachPlan(ctx context.Context, loanID int64, plan LoanPlan) (*Loan, error)

	PreviewFigures(ctx context.Context, borrowerID int64, principal money.Money, plan LoanPlan) (*Figures, error)

	GetFigures(ctx context.Context, loanID int64) (*Figures, error)

	RefreshFigures(ctx context.Context, loanID int64) error

	ProcessLoan(ctx context.Context, loanID int64, processedAt time.Time) (*Figures, error)

	ExtendLoan(ctx context.Context, loanID int64, days int) (*Loan, error)

	ListActiveRepaymentLoanIDs(ctx context.Context) ([]int64, error)
}

type Option func(*loanServiceImpl)

// WithClock replaces the wall clock used to decide what "today" is.
func WithClock(now func() time.Time) Option {
	return func(s *loanServiceImpl) {
		s.now = now
	}
}

type loanServiceImpl struct {
	repo       Repository
	salaryDays SalaryDayProvider
	publisher  event.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewLoanService(r Repository, salaryDays SalaryDayProvider, publisher event.EventPublisher, logger *slog.Logger, opts ...Option) LoanService {
	s := &loanServiceImpl{
		repo:       r,
		salaryDays: salaryDays,
		publisher:  publisher,
		logger:     logger.With("component", "LoanService"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *loanServiceImpl) today() time.Time {
	return dateOf(s.now().UTC())
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, borrowerID int64, principal money.Money, plan LoanPlan) (*Loan, error) {
	s.logger.InfoContext(ctx, "Creating new loan", "borrowerID", borrowerID)
	if _, err := s.salaryDays.SalaryDay(ctx, borrowerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Borrower not found", "borrowerID", borrowerID)
			return nil, fmt.Errorf("%w: borrower %d not found", apperrors.ErrValidation, borrowerID)
		}
		s.logger.ErrorContext(ctx, "Failed to look up borrower", "borrowerID", borrowerID, "error", err)
		return nil, fmt.Errorf("failed to verify borrower: %w", err)
	}

	l, err := NewLoan(borrowerID, principal, plan)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected loan terms", "borrowerID", borrowerID, "error", err)
		return nil, err
	}

	created, err := s.repo.CreateLoan(ctx, l)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save loan", "borrowerID", borrowerID, "error", err)
		return nil, fmt.Errorf("%w: failed to save loan: %v", apperrors.ErrInternalServer, err)
	}
	s.logger.InfoContext(ctx, "Loan created successfully", "loanID", created.ID, "borrowerID", borrowerID)
	return created, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	s.logger.DebugContext(ctx, "Getting loan details", "loanID", loanID)
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) AttachPlan(ctx context.Context, loanID int64, plan LoanPlan) (*Loan, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.IsProcessed() || l.Status.IsFrozen() {
		s.logger.WarnContext(ctx, "Refusing to change the plan of a processed loan", "loanID", loanID, "status", l.Status)
		return nil, fmt.Errorf("%w: loan %d was processed on %s", apperrors.ErrPlanFrozen, loanID, l.BaseDate(s.today()).Format(time.DateOnly))
	}
	if l.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: loan %d is %s", apperrors.ErrConflict, loanID, l.Status)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	plan, _ = NormalizePlan(plan)

	if err := s.repo.UpdatePlan(ctx, loanID, l.Version, plan); err != nil {
		return nil, s.wrapUpdateError(ctx, loanID, "attach plan", err)
	}
	l.Plan = plan
	l.Version++
	s.logger.InfoContext(ctx, "Plan attached to loan", "loanID", loanID, "planType", plan.Type)
	return l, nil
}

func (s *loanServiceImpl) PreviewFigures(ctx context.Context, borrowerID int64, principal money.Money, plan LoanPlan) (*Figures, error) {
	salaryDay := 0
	if borrowerID > 0 {
		day, err := s.salaryDays.SalaryDay(ctx, borrowerID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: failed to read salary day: %v", apperrors.ErrInternalServer, err)
		}
		salaryDay = day
	}

	l := &Loan{BorrowerID: borrowerID, Principal: principal, Status: StatusDraft, Plan: plan}
	tiers, err := s.fallbackTiers(ctx, l)
	if err != nil {
		return nil, err
	}
	figures, err := Calculate(CalculationInput{
		Loan:                 l,
		SalaryDay:            salaryDay,
		FallbackPenaltyTiers: tiers,
		Today:                s.today(),
	})
	if err != nil {
		monitoring.RecordCalculation(string(StateEditable), "error")
		return nil, err
	}
	monitoring.RecordCalculation(string(StateEditable), outcomeOf(figures))
	return figures, nil
}

func (s *loanServiceImpl) GetFigures(ctx context.Context, loanID int64) (*Figures, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	figures, err := s.calculate(ctx, l)
	if err != nil {
		return nil, err
	}
	if l.Status.IsFrozen() {
		s.writeBack(ctx, l, figures)
	}
	return figures, nil
}

func (s *loanServiceImpl) RefreshFigures(ctx context.Context, loanID int64) error {
	_, err := s.GetFigures(ctx, loanID)
	return err
}

func (s *loanServiceImpl) ProcessLoan(ctx context.Context, loanID int64, processedAt time.Time) (*Figures, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.IsProcessed() || l.Status.IsFrozen() {
		return nil, fmt.Errorf("%w: loan %d", apperrors.ErrAlreadyProcessed, loanID)
	}
	if l.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: loan %d is %s", apperrors.ErrConflict, loanID, l.Status)
	}
	if processedAt.IsZero() {
		processedAt = s.now()
	}
	processedAt = processedAt.UTC()

	expectedVersion := l.Version
	l.ProcessedAt = &processedAt
	if l.DisbursedAt == nil {
		l.DisbursedAt = &processedAt
	}
	l.Plan, _ = NormalizePlan(l.Plan)

	figures, err := s.calculate(ctx, l)
	if err != nil {
		return nil, err
	}

	l.Status = StatusActiveRepayment
	l.Schedule = storedSchedule(figures.Repayment.Schedule)
	l.DueDates = dueDatesOf(l.Schedule)
	l.FeesBreakdown = figures.Fees
	l.DisbursalAmount = figures.Disbursal.Amount
	l.TotalRepayable = figures.Total.Repayable

	if err := s.repo.UpdateLoan(ctx, l, expectedVersion); err != nil {
		return nil, s.wrapUpdateError(ctx, loanID, "process loan", err)
	}
	l.Version = expectedVersion + 1
	figures.State = StateFrozen
	s.logger.InfoContext(ctx, "Loan processed", "loanID", loanID, "installments", len(l.Schedule), "totalRepayable", l.TotalRepayable.String())

	evt := event.LoanProcessedEvent{
		Envelope:        event.NewEnvelope(l.ID, l.BorrowerID, s.now()),
		DisbursalAmount: l.DisbursalAmount.String(),
		TotalRepayable:  l.TotalRepayable.String(),
		DueDates:        l.DueDates,
	}
	if err := s.publisher.PublishLoanProcessed(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan processed event", "loanID", loanID, "error", err)
	}
	return figures, nil
}

func (s *loanServiceImpl) ExtendLoan(ctx context.Context, loanID int64, days int) (*Loan, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	expectedVersion := l.Version
	if err := l.ApplyExtension(days, s.today()); err != nil {
		s.logger.WarnContext(ctx, "Rejected tenor extension", "loanID", loanID, "days", days, "error", err)
		return nil, err
	}

	figures, err := s.calculate(ctx, l)
	if err != nil {
		return nil, err
	}
	if len(l.Schedule) > 0 {
		l.Schedule = storedSchedule(figures.Repayment.Schedule)
	}
	l.FeesBreakdown = figures.Fees
	l.DisbursalAmount = figures.Disbursal.Amount
	l.TotalRepayable = figures.Total.Repayable

	if err := s.repo.UpdateLoan(ctx, l, expectedVersion); err != nil {
		return nil, s.wrapUpdateError(ctx, loanID, "extend loan", err)
	}
	l.Version = expectedVersion + 1
	s.logger.InfoContext(ctx, "Loan tenor extended", "loanID", loanID, "days", days, "extensionCount", l.ExtensionCount)

	evt := event.LoanExtendedEvent{
		Envelope:       event.NewEnvelope(l.ID, l.BorrowerID, s.now()),
		ExtensionDays:  days,
		ExtensionCount: l.ExtensionCount,
		DueDates:       dueDatesOf(figures.Repayment.Schedule),
	}
	if err := s.publisher.PublishLoanExtended(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan extended event", "loanID", loanID, "error", err)
	}
	return l, nil
}

func (s *loanServiceImpl) ListActiveRepaymentLoanIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.repo.ListActiveRepaymentLoanIDs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list loans in active repayment", "error", err)
		return nil, fmt.Errorf("%w: failed to list active loans: %v", apperrors.ErrInternalServer, err)
	}
	return ids, nil
}

// calculate gathers everything the engine needs for a stored loan and runs it.
func (s *loanServiceImpl) calculate(ctx context.Context, l *Loan) (*Figures, error) {
	state := StateEditable
	if l.Status.IsFrozen() {
		state = StateFrozen
	}

	salaryDay, err := s.salaryDays.SalaryDay(ctx, l.BorrowerID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: failed to read salary day for loan %d: %v", apperrors.ErrInternalServer, l.ID, err)
		}
		s.logger.WarnContext(ctx, "Borrower of loan not found, calculating without a salary day", "loanID", l.ID, "borrowerID", l.BorrowerID)
		salaryDay = 0
	}
	payments, err := s.repo.GetPayments(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read payments for loan %d: %v", apperrors.ErrInternalServer, l.ID, err)
	}
	tiers, err := s.fallbackTiers(ctx, l)
	if err != nil {
		return nil, err
	}

	figures, err := Calculate(CalculationInput{
		Loan:                 l,
		SalaryDay:            salaryDay,
		Payments:             payments,
		FallbackPenaltyTiers: tiers,
		Today:                s.today(),
	})
	if err != nil {
		monitoring.RecordCalculation(string(state), "error")
		s.logger.WarnContext(ctx, "Loan figures could not be calculated", "loanID", l.ID, "error", err)
		return nil, err
	}
	monitoring.RecordCalculation(string(state), outcomeOf(figures))
	s.reportDiagnostics(ctx, l.ID, figures.Diagnostics)
	return figures, nil
}

func (s *loanServiceImpl) fallbackTiers(ctx context.Context, l *Loan) ([]PenaltyTier, error) {
	if len(l.Plan.PenaltyTiers) > 0 || l.Plan.ID == 0 {
		return nil, nil
	}
	tiers, err := s.repo.GetPenaltyTiersByPlanID(ctx, l.Plan.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read penalty tiers for plan %d: %v", apperrors.ErrInternalServer, l.Plan.ID, err)
	}
	return tiers, nil
}

func (s *loanServiceImpl) reportDiagnostics(ctx context.Context, loanID int64, diags []Diagnostic) {
	for _, d := range diags {
		monitoring.RecordDataIntegrityWarning(d.Code)
		attrs := []any{"loanID", loanID, "code", d.Code, "detail", d.Message}
		if d.Severity == SeverityError {
			s.logger.ErrorContext(ctx, "Loan data defect worked around", attrs...)
			continue
		}
		s.logger.WarnContext(ctx, "Loan data defect worked around", attrs...)
	}
}

// writeBack persists derived figures that drifted from the stored ones. It never
// fails the caller: conflicts and errors are logged and counted.
func (s *loanServiceImpl) writeBack(ctx context.Context, l *Loan, figures *Figures) {
	derived := DerivedFigures{
		FeesBreakdown:   figures.Fees,
		DisbursalAmount: figures.Disbursal.Amount,
		TotalRepayable:  figures.Total.Repayable,
	}
	if l.Plan.Type == PlanMultiEMI && figures.Repayment.DateSource.Trusted() {
		schedule := storedSchedule(figures.Repayment.Schedule)
		if !schedulesEqual(schedule, l.Schedule) {
			derived.Schedule = schedule
		}
	}
	if derived.Schedule == nil &&
		derived.FeesBreakdown.Equal(l.FeesBreakdown) &&
		derived.DisbursalAmount.Equal(l.DisbursalAmount) &&
		derived.TotalRepayable.Equal(l.TotalRepayable) {
		monitoring.RecordWriteback("unchanged")
		return
	}

	err := s.repo.UpdateDerivedFigures(ctx, l.ID, l.Version, derived)
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		monitoring.RecordWriteback("conflict")
		s.logger.WarnContext(ctx, "Loan changed during figure write-back, skipping", "loanID", l.ID, "version", l.Version)
		return
	case err != nil:
		monitoring.RecordWriteback("error")
		s.logger.ErrorContext(ctx, "Failed to write back loan figures", "loanID", l.ID, "error", err)
		return
	}
	monitoring.RecordWriteback("written")
	s.logger.InfoContext(ctx, "Corrected stored loan figures", "loanID", l.ID,
		"previousTotal", l.TotalRepayable.String(), "correctedTotal", derived.TotalRepayable.String())

	evt := event.LoanFiguresCorrectedEvent{
		Envelope:        event.NewEnvelope(l.ID, l.BorrowerID, s.now()),
		PreviousTotal:   l.TotalRepayable.String(),
		CorrectedTotal:  derived.TotalRepayable.String(),
		ScheduleWritten: derived.Schedule != nil,
	}
	if err := s.publisher.PublishLoanFiguresCorrected(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish figures corrected event", "loanID", l.ID, "error", err)
	}
}

func (s *loanServiceImpl) wrapUpdateError(ctx context.Context, loanID int64, op string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		s.logger.WarnContext(ctx, "Loan was modified concurrently", "loanID", loanID, "operation", op)
		return fmt.Errorf("%w: loan %d was modified concurrently, retry %s", apperrors.ErrConflict, loanID, op)
	case errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
	}
	s.logger.ErrorContext(ctx, "Failed to update loan", "loanID", loanID, "operation", op, "error", err)
	return fmt.Errorf("%w: failed to %s for loan %d: %v", apperrors.ErrInternalServer, op, loanID, err)
}

func outcomeOf(f *Figures) string {
	if f.BestEffort() {
		return "best_effort"
	}
	return "ok"
}

func storedSchedule(schedule []Installment) []Installment {
	stored := make([]Installment, len(schedule))
	for i, inst := range schedule {
		stored[i] = inst.withoutPenalty()
	}
	return stored
}

func dueDatesOf(schedule []Installment) []time.Time {
	dates := make([]time.Time, len(schedule))
	for i, inst := range schedule {
		dates[i] = inst.DueDate
	}
	return dates
}

func schedulesEqual(a, b []Installment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Number != y.Number || !dateOf(x.DueDate).Equal(dateOf(y.DueDate)) || x.Status != y.Status ||
			!x.Principal.Equal(y.Principal) || !x.Interest.Equal(y.Interest) ||
			!x.Fee.Equal(y.Fee) || !x.FeeGST.Equal(y.FeeGST) || !x.Amount.Equal(y.Amount) {
			return false
		}
	}
	return true
}
