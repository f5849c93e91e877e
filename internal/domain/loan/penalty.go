package loan

import (
	"sort"
	"time"

	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

type Penalty struct {
	DaysOverdue int         `json:"days_overdue"`
	Base        money.Money `json:"penalty_base"`
	GST         money.Money `json:"penalty_gst"`
	Total       money.Money `json:"penalty_total"`
}

// DaysOverdue is the number of whole days between the due date and today, today
// excluded, floored at one. It is zero while the installment is not yet late.
func DaysOverdue(due, today time.Time) int {
	if !dateOf(due).Before(dateOf(today)) {
		return 0
	}
	days := InclusiveDays(due, today) - 1
	if days < 1 {
		days = 1
	}
	return days
}

// CalculatePenalty accrues every tier the installment has passed through against
// the loan's original principal, then adds GST per tier.
//
// A tier covering a single day is a flat one-off charge. Any other tier charges
// its percent for each overdue day inside [start, min(end, daysOverdue)].
func CalculatePenalty(principal money.Money, tiers []PenaltyTier, due, today time.Time) Penalty {
	days := DaysOverdue(due, today)
	if days == 0 {
		return Penalty{}
	}

	p := Penalty{DaysOverdue: days}
	for _, tier := range sortTiers(tiers) {
		chargedDays := tierDays(tier, days)
		if chargedDays == 0 {
			continue
		}
		charge := principal.Mul(tier.Percent.Mul(decimal.NewFromInt(int64(chargedDays))).Shift(-2))
		gstPercent := GSTPercent
		if tier.GSTPercent.Valid {
			gstPercent = tier.GSTPercent.Decimal
		}
		p.Base = p.Base.Add(charge)
		p.GST = p.GST.Add(charge.Percent(gstPercent))
	}
	p.Total = p.Base.Add(p.GST)
	return p
}

func tierDays(tier PenaltyTier, daysOverdue int) int {
	start := tier.StartDay
	if start < 1 {
		start = 1
	}
	if start > daysOverdue {
		return 0
	}
	if tier.EndDay != nil && *tier.EndDay == tier.StartDay {
		return 1
	}
	end := daysOverdue
	if tier.EndDay != nil && *tier.EndDay < end {
		end = *tier.EndDay
	}
	if end < start {
		return 0
	}
	return end - start + 1
}

func sortTiers(tiers []PenaltyTier) []PenaltyTier {
	sorted := make([]PenaltyTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].StartDay < sorted[j].StartDay
	})
	return sorted
}
