package sqlite

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"loan-engine/internal/domain/borrower"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"
	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedBorrower(t *testing.T, store *Store) *borrower.Borrower {
	t.Helper()
	day := 28
	b := &borrower.Borrower{Name: "Asha Rao", SalaryDay: &day}
	require.NoError(t, store.Save(context.Background(), b))
	return b
}

func draftLoan(borrowerID int64) *loan.Loan {
	return &loan.Loan{
		BorrowerID: borrowerID,
		Principal:  money.MustParse("12000"),
		Status:     loan.StatusDraft,
		Plan: loan.LoanPlan{
			ID:                 2,
			Type:               loan.PlanMultiEMI,
			RepaymentDays:      30,
			InterestRatePerDay: decimal.RequireFromString("0.001"),
			EMICount:           3,
			EMIFrequency:       loan.FrequencyMonthly,
		},
	}
}

func TestBorrowerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should create, read and update a borrower", func(t *testing.T) {
		store := newTestStore(t)
		b := seedBorrower(t, store)
		require.NotZero(t, b.ID)

		found, err := store.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", found.Name)
		assert.Equal(t, 28, *found.SalaryDay)

		require.NoError(t, store.UpdateSalaryDay(ctx, b.ID, nil))
		found, err = store.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Nil(t, found.SalaryDay)

		found.Name = "Asha R."
		require.NoError(t, store.Save(ctx, found))
		found, err = store.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Asha R.", found.Name)
	})

	t.Run("should report missing borrowers", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.FindByID(ctx, 404)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, store.UpdateSalaryDay(ctx, 404, nil), apperrors.ErrNotFound)
	})
}

func TestLoanStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	b := seedBorrower(t, store)

	created, err := store.CreateLoan(ctx, draftLoan(b.ID))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(1), created.Version)

	got, err := store.GetLoanByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusDraft, got.Status)
	assert.Equal(t, "12000.00", got.Principal.String())
	assert.Equal(t, 3, got.Plan.EMICount)
	assert.Nil(t, got.ProcessedAt)

	plan := got.Plan
	plan.EMICount = 2
	require.NoError(t, store.UpdatePlan(ctx, got.ID, got.Version, plan))

	got, err = store.GetLoanByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 2, got.Plan.EMICount)

	processed := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	got.Status = loan.StatusActiveRepayment
	got.ProcessedAt = &processed
	got.DisbursedAt = &processed
	got.DueDates = []time.Time{time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)}
	got.Schedule = []loan.Installment{
		{Number: 1, DueDate: got.DueDates[0], Principal: money.MustParse("6000"), Amount: money.MustParse("6360"), Status: loan.InstallmentPending},
		{Number: 2, DueDate: got.DueDates[1], Principal: money.MustParse("6000"), Amount: money.MustParse("6168"), Status: loan.InstallmentPending},
	}
	got.DisbursalAmount = money.MustParse("12000")
	got.TotalRepayable = money.MustParse("12528")
	require.NoError(t, store.UpdateLoan(ctx, got, 2))

	t.Run("should refuse to change the plan once processed", func(t *testing.T) {
		err := store.UpdatePlan(ctx, got.ID, 3, plan)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("should round-trip the frozen state", func(t *testing.T) {
		frozen, err := store.GetLoanByID(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusActiveRepayment, frozen.Status)
		assert.True(t, frozen.ProcessedAt.Equal(processed))
		assert.Equal(t, got.DueDates, frozen.DueDates)
		require.Len(t, frozen.Schedule, 2)
		assert.Equal(t, "6168.00", frozen.Schedule[1].Amount.String())
		assert.Equal(t, "12528.00", frozen.TotalRepayable.String())
	})

	t.Run("should keep the schedule when derived figures carry none", func(t *testing.T) {
		err := store.UpdateDerivedFigures(ctx, got.ID, 3, loan.DerivedFigures{
			DisbursalAmount: money.MustParse("11760"),
			TotalRepayable:  money.MustParse("12528"),
		})
		require.NoError(t, err)

		after, err := store.GetLoanByID(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), after.Version)
		assert.Equal(t, "11760.00", after.DisbursalAmount.String())
		assert.Len(t, after.Schedule, 2)
	})

	t.Run("should reject a stale version", func(t *testing.T) {
		err := store.UpdateDerivedFigures(ctx, got.ID, 3, loan.DerivedFigures{})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("should report a missing loan", func(t *testing.T) {
		_, err := store.GetLoanByID(ctx, 999)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		err = store.UpdateDerivedFigures(ctx, 999, 1, loan.DerivedFigures{})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("should list loans in active repayment", func(t *testing.T) {
		_, err := store.CreateLoan(ctx, draftLoan(b.ID))
		require.NoError(t, err)

		ids, err := store.ListActiveRepaymentLoanIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{got.ID}, ids)
	})
}

func TestLoanStore_RejectsUnknownBorrower(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateLoan(context.Background(), draftLoan(77))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLoanStore_PaymentsAndTiers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	b := seedBorrower(t, store)
	created, err := store.CreateLoan(ctx, draftLoan(b.ID))
	require.NoError(t, err)

	paidAt := time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordPayment(ctx, created.ID, loan.Payment{InstallmentNumber: 2, Amount: money.MustParse("50"), PaidAt: paidAt.AddDate(0, 0, 1)}))
	require.NoError(t, store.RecordPayment(ctx, created.ID, loan.Payment{InstallmentNumber: 1, Amount: money.MustParse("6360"), PaidAt: paidAt}))

	payments, err := store.GetPayments(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, 1, payments[0].InstallmentNumber)
	assert.True(t, payments[0].PaidAt.Equal(paidAt))

	ten := 10
	tiers := []loan.PenaltyTier{
		{StartDay: 11, Percent: decimal.RequireFromString("0.2"), Order: 2},
		{StartDay: 1, EndDay: &ten, Percent: decimal.RequireFromString("0.5"), GSTPercent: decimal.NewNullDecimal(decimal.NewFromInt(18)), Order: 1},
	}
	require.NoError(t, store.SavePenaltyTiers(ctx, 2, tiers))
	require.NoError(t, store.SavePenaltyTiers(ctx, 2, tiers))

	stored, err := store.GetPenaltyTiersByPlanID(ctx, 2)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 1, stored[0].StartDay)
	assert.Equal(t, 10, *stored[0].EndDay)
	assert.True(t, stored[0].GSTPercent.Valid)
	assert.Nil(t, stored[1].EndDay)
	assert.False(t, stored[1].GSTPercent.Valid)

	empty, err := store.GetPenaltyTiersByPlanID(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	b := seedBorrower(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.FindByID(ctx, b.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
