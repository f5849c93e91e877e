package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/infrastructure/database"
	"loan-engine/internal/pkg/apperrors"
)

var _ loan.Repository = (*Store)(nil)

const loanColumns = `id, borrower_id, principal, status, plan, disbursed_at, processed_at,
	last_extension_date, extension_count, emi_schedule, due_dates, fees_breakdown,
	disbursal_amount, total_repayable, version, created_at, updated_at`

func (s *Store) CreateLoan(ctx context.Context, newLoan *loan.Loan) (_ *loan.Loan, err error) {
	defer observe("CreateLoan", time.Now(), &err)

	enc, err := database.EncodeLoan(newLoan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (borrower_id, principal, status, plan, disbursed_at, processed_at,
			last_extension_date, extension_count, emi_schedule, due_dates, fees_breakdown,
			disbursal_amount, total_repayable, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		newLoan.BorrowerID,
		newLoan.Principal.String(),
		string(newLoan.Status),
		string(enc.Plan),
		nullTime(newLoan.DisbursedAt),
		nullTime(newLoan.ProcessedAt),
		nullTime(newLoan.LastExtensionDate),
		newLoan.ExtensionCount,
		nullBytes(enc.Schedule),
		nullBytes(enc.DueDates),
		nullBytes(enc.FeesBreakdown),
		newLoan.DisbursalAmount.String(),
		newLoan.TotalRepayable.String(),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert loan", "borrower_id", newLoan.BorrowerID, "error", err)
		return nil, wrapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapDBError(err)
	}

	created := *newLoan
	created.ID = id
	created.Version = 1
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (s *Store) GetLoanByID(ctx context.Context, loanID int64) (_ *loan.Loan, err error) {
	defer observe("GetLoanByID", time.Now(), &err)

	var (
		rec                                     database.LoanRecord
		plan                                    string
		disbursedAt, processedAt, lastExtension sql.NullString
		schedule, dueDates, fees                sql.NullString
		createdAt, updatedAt                    string
	)
	err = s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, loanID).Scan(
		&rec.ID, &rec.BorrowerID, &rec.Principal, &rec.Status, &plan,
		&disbursedAt, &processedAt, &lastExtension, &rec.ExtensionCount,
		&schedule, &dueDates, &fees,
		&rec.DisbursalAmount, &rec.TotalRepayable,
		&rec.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %d: %w", loanID, apperrors.ErrNotFound)
		}
		return nil, wrapDBError(err)
	}

	rec.Plan = []byte(plan)
	if schedule.Valid {
		rec.Schedule = []byte(schedule.String)
	}
	if dueDates.Valid {
		rec.DueDates = []byte(dueDates.String)
	}
	if fees.Valid {
		rec.FeesBreakdown = []byte(fees.String)
	}
	if rec.DisbursedAt, err = parseNullTime(disbursedAt); err != nil {
		return nil, wrapDBError(err)
	}
	if rec.ProcessedAt, err = parseNullTime(processedAt); err != nil {
		return nil, wrapDBError(err)
	}
	if rec.LastExtensionDate, err = parseNullTime(lastExtension); err != nil {
		return nil, wrapDBError(err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, wrapDBError(err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, wrapDBError(err)
	}

	l, err := rec.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (s *Store) UpdatePlan(ctx context.Context, loanID, expectedVersion int64, plan loan.LoanPlan) (err error) {
	defer observe("UpdatePlan", time.Now(), &err)

	encoded, err := database.EncodePlan(plan)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}
	return s.conditionalUpdate(ctx, loanID, `
		UPDATE loans SET plan = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND processed_at IS NULL`,
		string(encoded), formatTime(time.Now()), loanID, expectedVersion)
}

func (s *Store) UpdateLoan(ctx context.Context, l *loan.Loan, expectedVersion int64) (err error) {
	defer observe("UpdateLoan", time.Now(), &err)

	enc, err := database.EncodeLoan(l)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}
	return s.conditionalUpdate(ctx, l.ID, `
		UPDATE loans
		SET status = ?, plan = ?, disbursed_at = ?, processed_at = ?, last_extension_date = ?,
			extension_count = ?, emi_schedule = ?, due_dates = ?, fees_breakdown = ?,
			disbursal_amount = ?, total_repayable = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(l.Status),
		string(enc.Plan),
		nullTime(l.DisbursedAt),
		nullTime(l.ProcessedAt),
		nullTime(l.LastExtensionDate),
		l.ExtensionCount,
		nullBytes(enc.Schedule),
		nullBytes(enc.DueDates),
		nullBytes(enc.FeesBreakdown),
		l.DisbursalAmount.String(),
		l.TotalRepayable.String(),
		formatTime(time.Now()),
		l.ID,
		expectedVersion,
	)
}

func (s *Store) UpdateDerivedFigures(ctx context.Context, loanID, expectedVersion int64, figures loan.DerivedFigures) (err error) {
	defer observe("UpdateDerivedFigures", time.Now(), &err)

	fees, err := database.EncodeFeeSplit(figures.FeesBreakdown)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}
	schedule, err := database.EncodeSchedule(figures.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}
	return s.conditionalUpdate(ctx, loanID, `
		UPDATE loans
		SET fees_breakdown = ?, disbursal_amount = ?, total_repayable = ?,
			emi_schedule = COALESCE(?, emi_schedule), version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(fees),
		figures.DisbursalAmount.String(),
		figures.TotalRepayable.String(),
		nullBytes(schedule),
		formatTime(time.Now()),
		loanID,
		expectedVersion,
	)
}

func (s *Store) conditionalUpdate(ctx context.Context, loanID int64, query string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", loanID, "error", err)
		return wrapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE id = ?)`, loanID).Scan(&exists); err != nil {
			return wrapDBError(err)
		}
		if !exists {
			return fmt.Errorf("loan %d: %w", loanID, apperrors.ErrNotFound)
		}
		s.logger.WarnContext(ctx, "Conditional update lost to a concurrent writer", "loan_id", loanID)
		return fmt.Errorf("loan %d: %w", loanID, apperrors.ErrConflict)
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (s *Store) GetPayments(ctx context.Context, loanID int64) (_ []loan.Payment, err error) {
	defer observe("GetPayments", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT installment_number, amount, paid_at FROM loan_payments
		WHERE loan_id = ? ORDER BY paid_at, id`, loanID)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	payments := make([]loan.Payment, 0)
	for rows.Next() {
		var p loan.Payment
		var amount, paidAt string
		if err = rows.Scan(&p.InstallmentNumber, &amount, &paidAt); err != nil {
			return nil, wrapDBError(err)
		}
		if p.Amount, err = database.ParseMoney(amount); err != nil {
			return nil, wrapDBError(err)
		}
		if p.PaidAt, err = parseTime(paidAt); err != nil {
			return nil, wrapDBError(err)
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return payments, nil
}

// RecordPayment appends to the payment ledger.
func (s *Store) RecordPayment(ctx context.Context, loanID int64, p loan.Payment) (err error) {
	defer observe("RecordPayment", time.Now(), &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO loan_payments (loan_id, installment_number, amount, paid_at) VALUES (?, ?, ?, ?)`,
		loanID, p.InstallmentNumber, p.Amount.String(), formatTime(p.PaidAt))
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (s *Store) GetPenaltyTiersByPlanID(ctx context.Context, planID int64) (_ []loan.PenaltyTier, err error) {
	defer observe("GetPenaltyTiersByPlanID", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT start_day, end_day, percent, gst_percent, tier_order FROM penalty_tiers
		WHERE plan_id = ? ORDER BY tier_order, start_day`, planID)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	tiers := make([]loan.PenaltyTier, 0)
	for rows.Next() {
		var t loan.PenaltyTier
		var endDay sql.NullInt64
		var percent string
		var gst sql.NullString
		if err = rows.Scan(&t.StartDay, &endDay, &percent, &gst, &t.Order); err != nil {
			return nil, wrapDBError(err)
		}
		if endDay.Valid {
			d := int(endDay.Int64)
			t.EndDay = &d
		}
		if t.Percent, err = database.ParseDecimal(percent); err != nil {
			return nil, wrapDBError(err)
		}
		var gstPtr *string
		if gst.Valid {
			gstPtr = &gst.String
		}
		if t.GSTPercent, err = database.ParseNullDecimal(gstPtr); err != nil {
			return nil, wrapDBError(err)
		}
		tiers = append(tiers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return tiers, nil
}

// SavePenaltyTiers replaces the penalty tiers configured for a plan.
func (s *Store) SavePenaltyTiers(ctx context.Context, planID int64, tiers []loan.PenaltyTier) (err error) {
	defer observe("SavePenaltyTiers", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM penalty_tiers WHERE plan_id = ?`, planID); err != nil {
		return wrapDBError(err)
	}
	for _, t := range tiers {
		var endDay sql.NullInt64
		if t.EndDay != nil {
			endDay = sql.NullInt64{Int64: int64(*t.EndDay), Valid: true}
		}
		var gst sql.NullString
		if t.GSTPercent.Valid {
			gst = sql.NullString{String: t.GSTPercent.Decimal.String(), Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO penalty_tiers (plan_id, start_day, end_day, percent, gst_percent, tier_order)
			VALUES (?, ?, ?, ?, ?, ?)`,
			planID, t.StartDay, endDay, t.Percent.String(), gst, t.Order); err != nil {
			return wrapDBError(err)
		}
	}
	if err = tx.Commit(); err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (s *Store) ListActiveRepaymentLoanIDs(ctx context.Context) (_ []int64, err error) {
	defer observe("ListActiveRepaymentLoanIDs", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM loans WHERE status = ? ORDER BY id`, string(loan.StatusActiveRepayment))
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, wrapDBError(err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return ids, nil
}
