package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"
	"loan-engine/internal/pkg/money"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loanRowColumns = []string{
	"id", "borrower_id", "principal", "status", "plan", "disbursed_at", "processed_at",
	"last_extension_date", "extension_count", "emi_schedule", "due_dates", "fees_breakdown",
	"disbursal_amount", "total_repayable", "version", "created_at", "updated_at",
}

func setupLoanRepo(t *testing.T) (context.Context, *LoanRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool := newMockPool(t)
	return context.Background(), NewLoanRepository(mockPool, logger), mockPool
}

func testPlan() loan.LoanPlan {
	return loan.LoanPlan{
		Type:               loan.PlanSingle,
		RepaymentDays:      15,
		InterestRatePerDay: decimal.RequireFromString("0.001"),
	}
}

func TestLoanRepository_CreateLoan(t *testing.T) {
	t.Run("should insert the loan and return the stored identity", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
		newLoan := &loan.Loan{BorrowerID: 3, Principal: money.MustParse("10000"), Status: loan.StatusDraft, Plan: testPlan()}

		mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans")).
			WithArgs(int64(3), "10000.00", "draft", pgxmock.AnyArg(), newLoan.DisbursedAt, newLoan.ProcessedAt,
				newLoan.LastExtensionDate, 0, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "0.00", "0.00").
			WillReturnRows(pgxmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
				AddRow(int64(11), int64(1), now, now))

		created, err := repo.CreateLoan(ctx, newLoan)

		require.NoError(t, err)
		assert.Equal(t, int64(11), created.ID)
		assert.Equal(t, int64(1), created.Version)
		assert.Zero(t, newLoan.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("should map a foreign key violation to not found", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		newLoan := &loan.Loan{BorrowerID: 99, Principal: money.MustParse("10000"), Status: loan.StatusDraft, Plan: testPlan()}

		mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans")).
			WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "loans_borrower_id_fkey"})

		_, err := repo.CreateLoan(ctx, newLoan)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestLoanRepository_GetLoanByID(t *testing.T) {
	t.Run("should decode a frozen loan", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
		processed := now

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans")).
			WithArgs(int64(11)).
			WillReturnRows(pgxmock.NewRows(loanRowColumns).AddRow(
				int64(11), int64(3), "10000.00", "active-repayment",
				[]byte(`{"plan_type":"single","repayment_days":15,"interest_rate_per_day":"0.001","fees":[],"penalty_tiers":[]}`),
				&processed, &processed, (*time.Time)(nil), 0,
				[]byte(nil), []byte(`["2026-01-16"]`), []byte(`{"deduct_from_disbursal":[],"add_to_total":[]}`),
				"10000.00", "10150.00", int64(2), now, now,
			))

		l, err := repo.GetLoanByID(ctx, 11)

		require.NoError(t, err)
		assert.Equal(t, loan.StatusActiveRepayment, l.Status)
		assert.Equal(t, "10150.00", l.TotalRepayable.String())
		assert.Equal(t, []time.Time{time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)}, l.DueDates)
		assert.Equal(t, int64(2), l.Version)
		assert.Nil(t, l.Schedule)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("should return not found", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans")).
			WithArgs(int64(11)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetLoanByID(ctx, 11)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("should reject an undecodable row", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		now := time.Now()

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans")).
			WithArgs(int64(11)).
			WillReturnRows(pgxmock.NewRows(loanRowColumns).AddRow(
				int64(11), int64(3), "10000.00", "draft", []byte(`{not json`),
				(*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil), 0,
				[]byte(nil), []byte(nil), []byte(nil), "", "", int64(1), now, now,
			))

		_, err := repo.GetLoanByID(ctx, 11)
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})
}

func TestLoanRepository_UpdatePlan(t *testing.T) {
	t.Run("should commit when the version matches", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("SET plan = $1, version = version + 1")).
			WithArgs(pgxmock.AnyArg(), int64(11), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		assert.NoError(t, repo.UpdatePlan(ctx, 11, 1, testPlan()))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("should report a conflict when the row moved on", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("SET plan = $1")).
			WithArgs(pgxmock.AnyArg(), int64(11), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs(int64(11)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mockPool.ExpectRollback()

		err := repo.UpdatePlan(ctx, 11, 1, testPlan())
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("should report a missing loan", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("SET plan = $1")).
			WithArgs(pgxmock.AnyArg(), int64(11), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs(int64(11)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mockPool.ExpectRollback()

		err := repo.UpdatePlan(ctx, 11, 1, testPlan())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestLoanRepository_UpdateLoan(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	processed := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l := &loan.Loan{
		ID:              11,
		BorrowerID:      3,
		Principal:       money.MustParse("10000"),
		Status:          loan.StatusActiveRepayment,
		Plan:            testPlan(),
		DisbursedAt:     &processed,
		ProcessedAt:     &processed,
		DueDates:        []time.Time{time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)},
		DisbursalAmount: money.MustParse("10000"),
		TotalRepayable:  money.MustParse("10150"),
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec(regexp.QuoteMeta("WHERE id = $12 AND version = $13")).
		WithArgs("active-repayment", pgxmock.AnyArg(), &processed, &processed, l.LastExtensionDate, 0,
			pgxmock.AnyArg(), []byte(`["2026-01-16"]`), pgxmock.AnyArg(), "10000.00", "10150.00", int64(11), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	assert.NoError(t, repo.UpdateLoan(ctx, l, 3))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanRepository_UpdateDerivedFigures(t *testing.T) {
	t.Run("should keep the stored schedule when none is given", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("emi_schedule = COALESCE($4::jsonb, emi_schedule)")).
			WithArgs(pgxmock.AnyArg(), "9800.00", "10150.00", []byte(nil), int64(11), int64(4)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		err := repo.UpdateDerivedFigures(ctx, 11, 4, loan.DerivedFigures{
			DisbursalAmount: money.MustParse("9800"),
			TotalRepayable:  money.MustParse("10150"),
		})
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("should surface execution failures", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("UPDATE loans")).
			WillReturnError(errors.New("deadlock detected"))
		mockPool.ExpectRollback()

		err := repo.UpdateDerivedFigures(ctx, 11, 4, loan.DerivedFigures{})
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})
}

func TestLoanRepository_GetPayments(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	paidAt := time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM loan_payments")).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"installment_number", "amount", "paid_at"}).
			AddRow(1, "6360.00", paidAt).
			AddRow(2, "100.50", paidAt.AddDate(0, 0, 3)))

	payments, err := repo.GetPayments(ctx, 11)

	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, 1, payments[0].InstallmentNumber)
	assert.Equal(t, "6360.00", payments[0].Amount.String())
	assert.Equal(t, "100.50", payments[1].Amount.String())
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanRepository_GetPenaltyTiersByPlanID(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	ten := 10
	gst := "18"

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM penalty_tiers")).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"start_day", "end_day", "percent", "gst_percent", "tier_order"}).
			AddRow(1, &ten, "0.5", &gst, 1).
			AddRow(11, (*int)(nil), "0.2", (*string)(nil), 2))

	tiers, err := repo.GetPenaltyTiersByPlanID(ctx, 2)

	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, 10, *tiers[0].EndDay)
	assert.True(t, tiers[0].GSTPercent.Valid)
	assert.Nil(t, tiers[1].EndDay)
	assert.False(t, tiers[1].GSTPercent.Valid)
	assert.True(t, tiers[1].Percent.Equal(decimal.RequireFromString("0.2")))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanRepository_ListActiveRepaymentLoanIDs(t *testing.T) {
	t.Run("should list ids in order", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("SELECT id FROM loans WHERE status = $1 ORDER BY id")).
			WithArgs("active-repayment").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(9)))

		ids, err := repo.ListActiveRepaymentLoanIDs(ctx)

		require.NoError(t, err)
		assert.Equal(t, []int64{4, 9}, ids)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("should wrap query failures", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)

		mockPool.ExpectQuery(regexp.QuoteMeta("SELECT id FROM loans")).
			WillReturnError(errors.New("connection refused"))

		_, err := repo.ListActiveRepaymentLoanIDs(ctx)
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})
}
