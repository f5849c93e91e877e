package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/infrastructure/database"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var _ loan.Repository = (*LoanRepository)(nil)

var errMsgFormat = "%w: %w"

// Numeric columns are read as text so amounts reach the domain without passing
// through float64.
const loanColumns = `id, borrower_id, principal::text, status, plan, disbursed_at, processed_at,
        last_extension_date, extension_count, emi_schedule, due_dates, fees_breakdown,
        COALESCE(disbursal_amount::text, ''), COALESCE(total_repayable::text, ''),
        version, created_at, updated_at`

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	enc, err := database.EncodeLoan(newLoan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}

	query := `
        INSERT INTO loans (borrower_id, principal, status, plan, disbursed_at, processed_at,
            last_extension_date, extension_count, emi_schedule, due_dates, fees_breakdown,
            disbursal_amount, total_repayable, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, NOW(), NOW())
        RETURNING id, version, created_at, updated_at`
	status := "success"
	startTime := time.Now()

	created := *newLoan
	err = r.db.QueryRow(ctx, query,
		newLoan.BorrowerID,
		newLoan.Principal.String(),
		string(newLoan.Status),
		enc.Plan,
		newLoan.DisbursedAt,
		newLoan.ProcessedAt,
		newLoan.LastExtensionDate,
		newLoan.ExtensionCount,
		enc.Schedule,
		enc.DueDates,
		enc.FeesBreakdown,
		newLoan.DisbursalAmount.String(),
		newLoan.TotalRepayable.String(),
	).Scan(&created.ID, &created.Version, &created.CreatedAt, &created.UpdatedAt)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("CreateLoan", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "borrower_id", newLoan.BorrowerID, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Loan created", "loan_id", created.ID, "borrower_id", created.BorrowerID)
	return &created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var rec database.LoanRecord
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&rec.ID, &rec.BorrowerID, &rec.Principal, &rec.Status, &rec.Plan,
		&rec.DisbursedAt, &rec.ProcessedAt, &rec.LastExtensionDate, &rec.ExtensionCount,
		&rec.Schedule, &rec.DueDates, &rec.FeesBreakdown,
		&rec.DisbursalAmount, &rec.TotalRepayable,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, fmt.Errorf("loan %d: %w", loanID, apperrors.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	l, err := rec.ToDomain()
	if err != nil {
		r.logger.ErrorContext(ctx, "Stored loan could not be decoded", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) UpdatePlan(ctx context.Context, loanID, expectedVersion int64, plan loan.LoanPlan) error {
	encoded, err := database.EncodePlan(plan)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}

	query := `
        UPDATE loans
        SET plan = $1, version = version + 1, updated_at = NOW()
        WHERE id = $2 AND version = $3 AND processed_at IS NULL`

	return r.conditionalUpdate(ctx, "UpdatePlan", loanID, query, encoded, loanID, expectedVersion)
}

func (r *LoanRepository) UpdateLoan(ctx context.Context, l *loan.Loan, expectedVersion int64) error {
	enc, err := database.EncodeLoan(l)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}

	query := `
        UPDATE loans
        SET status = $1,
            plan = $2,
            disbursed_at = $3,
            processed_at = $4,
            last_extension_date = $5,
            extension_count = $6,
            emi_schedule = $7,
            due_dates = $8,
            fees_breakdown = $9,
            disbursal_amount = $10,
            total_repayable = $11,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $12 AND version = $13`

	return r.conditionalUpdate(ctx, "UpdateLoan", l.ID, query,
		string(l.Status),
		enc.Plan,
		l.DisbursedAt,
		l.ProcessedAt,
		l.LastExtensionDate,
		l.ExtensionCount,
		enc.Schedule,
		enc.DueDates,
		enc.FeesBreakdown,
		l.DisbursalAmount.String(),
		l.TotalRepayable.String(),
		l.ID,
		expectedVersion,
	)
}

func (r *LoanRepository) UpdateDerivedFigures(ctx context.Context, loanID, expectedVersion int64, figures loan.DerivedFigures) error {
	fees, err := database.EncodeFeeSplit(figures.FeesBreakdown)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}
	schedule, err := database.EncodeSchedule(figures.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}

	query := `
        UPDATE loans
        SET fees_breakdown = $1,
            disbursal_amount = $2,
            total_repayable = $3,
            emi_schedule = COALESCE($4::jsonb, emi_schedule),
            version = version + 1,
            updated_at = NOW()
        WHERE id = $5 AND version = $6`

	return r.conditionalUpdate(ctx, "UpdateDerivedFigures", loanID, query,
		fees,
		figures.DisbursalAmount.String(),
		figures.TotalRepayable.String(),
		schedule,
		loanID,
		expectedVersion,
	)
}

// conditionalUpdate runs a version-guarded update. When no row matches it checks
// inside the same transaction whether the loan exists, to tell a lost race from a
// missing loan.
func (r *LoanRepository) conditionalUpdate(ctx context.Context, queryName string, loanID int64, query string, args ...any) error {
	status := "success"
	startTime := time.Now()
	defer func() {
		monitoring.RecordDBQuery(queryName, status, time.Since(startTime))
	}()

	tx, err := r.BeginTx(ctx)
	if err != nil {
		status = "error"
		return err
	}
	defer r.RollbackTx(ctx, tx)

	cmdTag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Failed to update loan", "operation", queryName, "loan_id", loanID, "error", err)
		return translateDBError(err, r.logger)
	}

	if cmdTag.RowsAffected() == 0 {
		status = "conflict"
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, loanID).Scan(&exists); err != nil {
			status = "error"
			return translateDBError(err, r.logger)
		}
		if !exists {
			r.logger.WarnContext(ctx, "Update target not found", "operation", queryName, "loan_id", loanID)
			return fmt.Errorf("loan %d: %w", loanID, apperrors.ErrNotFound)
		}
		r.logger.WarnContext(ctx, "Conditional update lost to a concurrent writer", "operation", queryName, "loan_id", loanID)
		return fmt.Errorf("loan %d: %w", loanID, apperrors.ErrConflict)
	}

	if err := r.CommitTx(ctx, tx); err != nil {
		status = "error"
		return err
	}
	return nil
}

func (r *LoanRepository) GetPayments(ctx context.Context, loanID int64) ([]loan.Payment, error) {
	query := `
        SELECT installment_number, amount::text, paid_at
        FROM loan_payments
        WHERE loan_id = $1
        ORDER BY paid_at, id`
	status := "success"
	startTime := time.Now()
	defer func() {
		monitoring.RecordDBQuery("GetPayments", status, time.Since(startTime))
	}()

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Failed to query payments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments := make([]loan.Payment, 0)
	for rows.Next() {
		var p loan.Payment
		var amount string
		if err := rows.Scan(&p.InstallmentNumber, &amount, &p.PaidAt); err != nil {
			status = "error"
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		if p.Amount, err = database.ParseMoney(amount); err != nil {
			status = "error"
			return nil, fmt.Errorf("%w: payment amount for loan %d: %w", apperrors.ErrDatabase, loanID, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return payments, nil
}

func (r *LoanRepository) GetPenaltyTiersByPlanID(ctx context.Context, planID int64) ([]loan.PenaltyTier, error) {
	query := `
        SELECT start_day, end_day, percent::text, gst_percent::text, tier_order
        FROM penalty_tiers
        WHERE plan_id = $1
        ORDER BY tier_order, start_day`
	status := "success"
	startTime := time.Now()
	defer func() {
		monitoring.RecordDBQuery("GetPenaltyTiersByPlanID", status, time.Since(startTime))
	}()

	rows, err := r.db.Query(ctx, query, planID)
	if err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Failed to query penalty tiers", "plan_id", planID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	tiers := make([]loan.PenaltyTier, 0)
	for rows.Next() {
		var t loan.PenaltyTier
		var percent string
		var gst *string
		if err := rows.Scan(&t.StartDay, &t.EndDay, &percent, &gst, &t.Order); err != nil {
			status = "error"
			r.logger.ErrorContext(ctx, "Failed to scan penalty tier row", "plan_id", planID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		if t.Percent, err = database.ParseDecimal(percent); err != nil {
			status = "error"
			return nil, fmt.Errorf("%w: penalty percent for plan %d: %w", apperrors.ErrDatabase, planID, err)
		}
		if t.GSTPercent, err = database.ParseNullDecimal(gst); err != nil {
			status = "error"
			return nil, fmt.Errorf("%w: penalty GST for plan %d: %w", apperrors.ErrDatabase, planID, err)
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		status = "error"
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tiers, nil
}

func (r *LoanRepository) ListActiveRepaymentLoanIDs(ctx context.Context) ([]int64, error) {
	logCtx := r.logger.With(slog.String("operation", "ListActiveRepaymentLoanIDs"))
	logCtx.DebugContext(ctx, "Attempting to list loans in active repayment")

	query := `SELECT id FROM loans WHERE status = $1 ORDER BY id`
	status := "success"
	startTime := time.Now()
	defer func() {
		monitoring.RecordDBQuery("ListActiveRepaymentLoanIDs", status, time.Since(startTime))
	}()

	rows, err := r.db.Query(ctx, query, string(loan.StatusActiveRepayment))
	if err != nil {
		status = "error"
		logCtx.ErrorContext(ctx, "Failed to query active loan IDs", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query active loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loanIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			status = "error"
			logCtx.ErrorContext(ctx, "Failed to scan active loan ID row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan active loan ID: %w", apperrors.ErrDatabase, err)
		}
		loanIDs = append(loanIDs, id)
	}
	if err := rows.Err(); err != nil {
		status = "error"
		logCtx.ErrorContext(ctx, "Error iterating active loan ID rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating active loan IDs: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Listed loans in active repayment", slog.Int("count", len(loanIDs)))
	return loanIDs, nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		case "23503":
			contextLogger.Warn("Database foreign key violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.ConstraintName)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
