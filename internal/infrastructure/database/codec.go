// Package database holds the row encoding shared by the PostgreSQL and SQLite
// stores. Money columns travel as decimal strings and structured loan state as JSON.
package database

import (
	"encoding/json"
	"fmt"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

// LoanRecord is a loans row as read from storage, before decoding.
type LoanRecord struct {
	ID                int64
	BorrowerID        int64
	Principal         string
	Status            string
	Plan              []byte
	DisbursedAt       *time.Time
	ProcessedAt       *time.Time
	LastExtensionDate *time.Time
	ExtensionCount    int
	Schedule          []byte
	DueDates          []byte
	FeesBreakdown     []byte
	DisbursalAmount   string
	TotalRepayable    string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EncodedLoan holds the column values written for a loan. Schedule and DueDates are
// nil when the loan has none, which stores SQL NULL.
type EncodedLoan struct {
	Plan          []byte
	Schedule      []byte
	DueDates      []byte
	FeesBreakdown []byte
}

func (r LoanRecord) ToDomain() (*loan.Loan, error) {
	l := &loan.Loan{
		ID:                r.ID,
		BorrowerID:        r.BorrowerID,
		Status:            loan.LoanStatus(r.Status),
		DisbursedAt:       r.DisbursedAt,
		ProcessedAt:       r.ProcessedAt,
		LastExtensionDate: r.LastExtensionDate,
		ExtensionCount:    r.ExtensionCount,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	var err error
	if l.Principal, err = ParseMoney(r.Principal); err != nil {
		return nil, fmt.Errorf("loan %d principal: %w", r.ID, err)
	}
	if l.DisbursalAmount, err = ParseMoney(r.DisbursalAmount); err != nil {
		return nil, fmt.Errorf("loan %d disbursal amount: %w", r.ID, err)
	}
	if l.TotalRepayable, err = ParseMoney(r.TotalRepayable); err != nil {
		return nil, fmt.Errorf("loan %d total repayable: %w", r.ID, err)
	}
	if err := decodeJSON(r.Plan, &l.Plan); err != nil {
		return nil, fmt.Errorf("loan %d plan: %w", r.ID, err)
	}
	if err := decodeJSON(r.Schedule, &l.Schedule); err != nil {
		return nil, fmt.Errorf("loan %d schedule: %w", r.ID, err)
	}
	if err := decodeJSON(r.FeesBreakdown, &l.FeesBreakdown); err != nil {
		return nil, fmt.Errorf("loan %d fees breakdown: %w", r.ID, err)
	}
	if l.DueDates, err = DecodeDueDates(r.DueDates); err != nil {
		return nil, fmt.Errorf("loan %d due dates: %w", r.ID, err)
	}
	return l, nil
}

func EncodeLoan(l *loan.Loan) (EncodedLoan, error) {
	var enc EncodedLoan
	var err error
	if enc.Plan, err = json.Marshal(l.Plan); err != nil {
		return enc, fmt.Errorf("encode plan: %w", err)
	}
	if enc.Schedule, err = EncodeSchedule(l.Schedule); err != nil {
		return enc, err
	}
	if enc.DueDates, err = EncodeDueDates(l.DueDates); err != nil {
		return enc, err
	}
	if enc.FeesBreakdown, err = EncodeFeeSplit(l.FeesBreakdown); err != nil {
		return enc, err
	}
	return enc, nil
}

func EncodePlan(p loan.LoanPlan) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return b, nil
}

func EncodeSchedule(schedule []loan.Installment) ([]byte, error) {
	if len(schedule) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(schedule)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return b, nil
}

func EncodeFeeSplit(split loan.FeeSplit) ([]byte, error) {
	if split.DeductFromDisbursal == nil {
		split.DeductFromDisbursal = []loan.FeeLine{}
	}
	if split.AddToTotal == nil {
		split.AddToTotal = []loan.FeeLine{}
	}
	b, err := json.Marshal(split)
	if err != nil {
		return nil, fmt.Errorf("encode fees breakdown: %w", err)
	}
	return b, nil
}

// EncodeDueDates stores due dates as a JSON list of calendar dates.
func EncodeDueDates(dates []time.Time) ([]byte, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(time.DateOnly)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode due dates: %w", err)
	}
	return b, nil
}

func DecodeDueDates(raw []byte) ([]time.Time, error) {
	var values []string
	if err := decodeJSON(raw, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	dates := make([]time.Time, len(values))
	for i, v := range values {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, err
		}
		dates[i] = d
	}
	return dates, nil
}

// ParseMoney reads a stored amount; NULL and empty read as zero.
func ParseMoney(s string) (money.Money, error) {
	if s == "" {
		return money.Zero, nil
	}
	return money.Parse(s)
}

func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// ParseNullDecimal reads an optional stored percentage.
func ParseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil || *s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
