package dto

import (
	"testing"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanRequest_ToDomain(t *testing.T) {
	t.Run("parses fees and tiers", func(t *testing.T) {
		ten, gst := 10, "18"
		req := PlanRequest{
			PlanType:           "multi_emi",
			RepaymentDays:      30,
			InterestRatePerDay: "0.001",
			EMICount:           3,
			EMIFrequency:       "monthly",
			Fees:               []FeeRequest{{Name: "Processing fee", Percent: "2", ApplicationMethod: "deduct_from_disbursal"}},
			PenaltyTiers:       []PenaltyTierRequest{{StartDay: 1, EndDay: &ten, Percent: "0.5", GSTPercent: &gst, Order: 1}},
		}

		plan, err := req.ToDomain()

		require.NoError(t, err)
		assert.Equal(t, loan.PlanMultiEMI, plan.Type)
		assert.Equal(t, loan.FrequencyMonthly, plan.EMIFrequency)
		assert.Equal(t, "0.001", plan.InterestRatePerDay.String())
		require.Len(t, plan.Fees, 1)
		assert.Equal(t, loan.FeeDeductFromDisbursal, plan.Fees[0].Method)
		require.Len(t, plan.PenaltyTiers, 1)
		assert.True(t, plan.PenaltyTiers[0].GSTPercent.Valid)
	})

	t.Run("leaves an unknown fee method for the domain to resolve", func(t *testing.T) {
		req := PlanRequest{PlanType: "single", RepaymentDays: 15, InterestRatePerDay: "0.001",
			Fees: []FeeRequest{{Name: "Post service fee", Percent: "1"}}}

		plan, err := req.ToDomain()

		require.NoError(t, err)
		assert.False(t, plan.Fees[0].Method.Valid())
	})

	t.Run("rejects malformed numbers", func(t *testing.T) {
		_, err := PlanRequest{InterestRatePerDay: "one"}.ToDomain()
		assert.ErrorContains(t, err, "interestRatePerDay")

		_, err = PlanRequest{InterestRatePerDay: "0.1", Fees: []FeeRequest{{Name: "x", Percent: "%"}}}.ToDomain()
		assert.ErrorContains(t, err, "fee")
	})
}

func TestCreateLoanRequest_Validate(t *testing.T) {
	assert.NoError(t, (&CreateLoanRequest{BorrowerID: 1, Principal: "10000"}).Validate())
	assert.Error(t, (&CreateLoanRequest{BorrowerID: 0, Principal: "10000"}).Validate())
	assert.Error(t, (&CreateLoanRequest{BorrowerID: 1, Principal: ""}).Validate())
	assert.Error(t, (&QuoteRequest{Principal: "ten"}).Validate())
	assert.NoError(t, (&QuoteRequest{Principal: "10"}).Validate())
}

func TestProcessLoanRequest_Time(t *testing.T) {
	zero, err := (&ProcessLoanRequest{}).Time()
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	d, err := (&ProcessLoanRequest{ProcessedAt: "2026-01-01"}).Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = (&ProcessLoanRequest{ProcessedAt: "01/01/2026"}).Time()
	assert.Error(t, err)
}

func TestNewLoanResponse(t *testing.T) {
	l := &loan.Loan{
		ID:             4,
		BorrowerID:     2,
		Principal:      money.MustParse("10000"),
		Status:         loan.StatusActiveRepayment,
		DueDates:       []time.Time{time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)},
		TotalRepayable: money.MustParse("10150"),
		Schedule:       []loan.Installment{{Number: 1}},
	}

	resp := NewLoanResponse(l, false)
	assert.Equal(t, "4", resp.ID)
	assert.Equal(t, []string{"2026-01-16"}, resp.DueDates)
	assert.Equal(t, "10150.00", resp.TotalRepayable)
	assert.Nil(t, resp.Schedule)

	assert.Len(t, NewLoanResponse(l, true).Schedule, 1)
}
