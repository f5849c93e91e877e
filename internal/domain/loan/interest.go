package loan

import (
	"time"

	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

// InclusiveDays counts the calendar days in [start, end]; zero when end is before start.
func InclusiveDays(start, end time.Time) int {
	days := daysBetween(start, end) + 1
	if days < 0 {
		return 0
	}
	return days
}

// AccrueInterest is simple daily interest on the outstanding principal for every day
// of [start, end]. Prior interest never joins the base.
func AccrueInterest(outstanding money.Money, ratePerDay decimal.Decimal, start, end time.Time) money.Money {
	days := InclusiveDays(start, end)
	if days == 0 || !outstanding.IsPositive() || !ratePerDay.IsPositive() {
		return money.Zero
	}
	return outstanding.Mul(ratePerDay.Mul(decimal.NewFromInt(int64(days))))
}
