package loan

import (
	"strings"

	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

// GSTPercent is charged on every fee.
var GSTPercent = decimal.NewFromInt(18)

const postServiceFeeMarker = "post service fee"

// FeeKind says where a fee is collected. The zero value and any string outside the
// two known kinds are unresolved and must go through NormalizeFee.
type FeeKind string

const (
	FeeDeductFromDisbursal FeeKind = "deduct_from_disbursal"
	FeeAddToTotal          FeeKind = "add_to_total"
)

func (k FeeKind) Valid() bool {
	return k == FeeDeductFromDisbursal || k == FeeAddToTotal
}

type Fee struct {
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Method  FeeKind         `json:"application_method"`
}

// NormalizeFee resolves a fee with a missing or unrecognised application method.
// Post service fees are collected with the repayment; anything else is taken from
// the disbursal. The second result reports whether the fee had to be corrected.
func NormalizeFee(f Fee) (Fee, bool) {
	if f.Method.Valid() {
		return f, false
	}
	if strings.Contains(strings.ToLower(f.Name), postServiceFeeMarker) {
		f.Method = FeeAddToTotal
	} else {
		f.Method = FeeDeductFromDisbursal
	}
	return f, true
}

// NormalizePlan returns a copy of the plan with every fee resolved, and the names
// of the fees that were corrected.
func NormalizePlan(p LoanPlan) (LoanPlan, []string) {
	var corrected []string
	fees := make([]Fee, len(p.Fees))
	for i, f := range p.Fees {
		nf, changed := NormalizeFee(f)
		if changed {
			corrected = append(corrected, f.Name)
		}
		fees[i] = nf
	}
	p.Fees = fees
	return p, corrected
}

type FeeLine struct {
	Name       string          `json:"name"`
	Percent    decimal.Decimal `json:"percent"`
	Method     FeeKind         `json:"application_method"`
	BaseAmount money.Money     `json:"base_amount"`
	GSTAmount  money.Money     `json:"gst_amount"`
	Total      money.Money     `json:"total"`
	Corrected  bool            `json:"corrected,omitempty"`
}

type FeeSplit struct {
	DeductFromDisbursal []FeeLine `json:"deduct_from_disbursal"`
	AddToTotal          []FeeLine `json:"add_to_total"`
}

// SplitFees prices every fee against the principal and files it under exactly one
// of the two collection methods.
func SplitFees(principal money.Money, fees []Fee) FeeSplit {
	split := FeeSplit{
		DeductFromDisbursal: []FeeLine{},
		AddToTotal:          []FeeLine{},
	}
	for _, raw := range fees {
		f, corrected := NormalizeFee(raw)
		base := principal.Percent(f.Percent)
		gst := base.Percent(GSTPercent)
		line := FeeLine{
			Name:       f.Name,
			Percent:    f.Percent,
			Method:     f.Method,
			BaseAmount: base,
			GSTAmount:  gst,
			Total:      base.Add(gst),
			Corrected:  corrected,
		}
		if f.Method == FeeAddToTotal {
			split.AddToTotal = append(split.AddToTotal, line)
		} else {
			split.DeductFromDisbursal = append(split.DeductFromDisbursal, line)
		}
	}
	return split
}

func (s FeeSplit) DeductedTotal() money.Money {
	total := money.Zero
	for _, l := range s.DeductFromDisbursal {
		total = total.Add(l.Total)
	}
	return total
}

// RepayableBase and RepayableGST are the add-to-total amounts spread across installments.
func (s FeeSplit) RepayableBase() money.Money {
	total := money.Zero
	for _, l := range s.AddToTotal {
		total = total.Add(l.BaseAmount)
	}
	return total
}

func (s FeeSplit) RepayableGST() money.Money {
	total := money.Zero
	for _, l := range s.AddToTotal {
		total = total.Add(l.GSTAmount)
	}
	return total
}

// Equal compares two splits by value; decimal exponents may differ after a database round trip.
func (s FeeSplit) Equal(o FeeSplit) bool {
	return feeLinesEqual(s.DeductFromDisbursal, o.DeductFromDisbursal) && feeLinesEqual(s.AddToTotal, o.AddToTotal)
}

func feeLinesEqual(a, b []FeeLine) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Method != b[i].Method || !a[i].Percent.Equal(b[i].Percent) ||
			!a[i].BaseAmount.Equal(b[i].BaseAmount) || !a[i].GSTAmount.Equal(b[i].GSTAmount) || !a[i].Total.Equal(b[i].Total) {
			return false
		}
	}
	return true
}
