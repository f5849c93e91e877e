package dto

import (
	"fmt"
	"strconv"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/money"

	"github.com/shopspring/decimal"
)

type FeeRequest struct {
	Name              string `json:"name"`
	Percent           string `json:"percent"`
	ApplicationMethod string `json:"applicationMethod,omitempty"`
}

type PenaltyTierRequest struct {
	StartDay   int     `json:"startDay"`
	EndDay     *int    `json:"endDay,omitempty"`
	Percent    string  `json:"percent"`
	GSTPercent *string `json:"gstPercent,omitempty"`
	Order      int     `json:"order"`
}

type PlanRequest struct {
	ID                    int64                `json:"id,omitempty"`
	PlanType              string               `json:"planType"`
	RepaymentDays         int                  `json:"repaymentDays"`
	InterestRatePerDay    string               `json:"interestRatePerDay"`
	CalculateBySalaryDate bool                 `json:"calculateBySalaryDate"`
	EMICount              int                  `json:"emiCount,omitempty"`
	EMIFrequency          string               `json:"emiFrequency,omitempty"`
	Fees                  []FeeRequest         `json:"fees,omitempty"`
	PenaltyTiers          []PenaltyTierRequest `json:"penaltyTiers,omitempty"`
}

// ToDomain parses the numeric strings of the plan. Shape rules such as a positive
// EMI count are left to the domain.
func (p PlanRequest) ToDomain() (loan.LoanPlan, error) {
	rate, err := decimal.NewFromString(p.InterestRatePerDay)
	if err != nil {
		return loan.LoanPlan{}, fmt.Errorf("invalid interestRatePerDay %q", p.InterestRatePerDay)
	}
	plan := loan.LoanPlan{
		ID:                    p.ID,
		Type:                  loan.PlanType(p.PlanType),
		RepaymentDays:         p.RepaymentDays,
		InterestRatePerDay:    rate,
		CalculateBySalaryDate: p.CalculateBySalaryDate,
		EMICount:              p.EMICount,
		EMIFrequency:          loan.Frequency(p.EMIFrequency),
		Fees:                  make([]loan.Fee, 0, len(p.Fees)),
		PenaltyTiers:          make([]loan.PenaltyTier, 0, len(p.PenaltyTiers)),
	}
	for _, f := range p.Fees {
		pct, err := decimal.NewFromString(f.Percent)
		if err != nil {
			return loan.LoanPlan{}, fmt.Errorf("invalid percent %q for fee %q", f.Percent, f.Name)
		}
		plan.Fees = append(plan.Fees, loan.Fee{Name: f.Name, Percent: pct, Method: loan.FeeKind(f.ApplicationMethod)})
	}
	for _, t := range p.PenaltyTiers {
		pct, err := decimal.NewFromString(t.Percent)
		if err != nil {
			return loan.LoanPlan{}, fmt.Errorf("invalid percent %q for penalty tier starting on day %d", t.Percent, t.StartDay)
		}
		tier := loan.PenaltyTier{StartDay: t.StartDay, EndDay: t.EndDay, Percent: pct, Order: t.Order}
		if t.GSTPercent != nil {
			gst, err := decimal.NewFromString(*t.GSTPercent)
			if err != nil {
				return loan.LoanPlan{}, fmt.Errorf("invalid gstPercent %q for penalty tier starting on day %d", *t.GSTPercent, t.StartDay)
			}
			tier.GSTPercent = decimal.NewNullDecimal(gst)
		}
		plan.PenaltyTiers = append(plan.PenaltyTiers, tier)
	}
	return plan, nil
}

type CreateLoanRequest struct {
	BorrowerID int64       `json:"borrowerId"`
	Principal  string      `json:"principal"`
	Plan       PlanRequest `json:"plan"`
}

func (r *CreateLoanRequest) Validate() error {
	if r.BorrowerID <= 0 {
		return fmt.Errorf("borrowerId must be a positive number")
	}
	if _, err := money.Parse(r.Principal); err != nil || r.Principal == "" {
		return fmt.Errorf("invalid principal %q", r.Principal)
	}
	return nil
}

// QuoteRequest asks for the figures of a loan that has not been created. The
// borrower is optional and only used for salary-day anchoring.
type QuoteRequest struct {
	BorrowerID int64       `json:"borrowerId,omitempty"`
	Principal  string      `json:"principal"`
	Plan       PlanRequest `json:"plan"`
}

func (r *QuoteRequest) Validate() error {
	if r.BorrowerID < 0 {
		return fmt.Errorf("borrowerId cannot be negative")
	}
	if _, err := money.Parse(r.Principal); err != nil || r.Principal == "" {
		return fmt.Errorf("invalid principal %q", r.Principal)
	}
	return nil
}

type ProcessLoanRequest struct {
	// ProcessedAt defaults to now when empty.
	ProcessedAt string `json:"processedAt,omitempty"`
}

func (r *ProcessLoanRequest) Time() (time.Time, error) {
	if r.ProcessedAt == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, r.ProcessedAt); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, r.ProcessedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid processedAt format (use YYYY-MM-DD or RFC 3339)")
	}
	return t, nil
}

type ExtendLoanRequest struct {
	Days int `json:"days"`
}

func (r *ExtendLoanRequest) Validate() error {
	if r.Days <= 0 {
		return fmt.Errorf("days must be positive")
	}
	return nil
}

type LoanResponse struct {
	ID              string             `json:"id"`
	BorrowerID      string             `json:"borrowerId"`
	Principal       string             `json:"principal"`
	Status          string             `json:"status"`
	Plan            loan.LoanPlan      `json:"plan"`
	DisbursedAt     *time.Time         `json:"disbursedAt,omitempty"`
	ProcessedAt     *time.Time         `json:"processedAt,omitempty"`
	ExtensionCount  int                `json:"extensionCount"`
	DueDates        []string           `json:"dueDates,omitempty"`
	DisbursalAmount string             `json:"disbursalAmount"`
	TotalRepayable  string             `json:"totalRepayable"`
	Version         int64              `json:"version"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	Schedule        []loan.Installment `json:"schedule,omitempty"`
}

func NewLoanResponse(l *loan.Loan, includeSchedule bool) LoanResponse {
	resp := LoanResponse{
		ID:              strconv.FormatInt(l.ID, 10),
		BorrowerID:      strconv.FormatInt(l.BorrowerID, 10),
		Principal:       l.Principal.String(),
		Status:          string(l.Status),
		Plan:            l.Plan,
		DisbursedAt:     l.DisbursedAt,
		ProcessedAt:     l.ProcessedAt,
		ExtensionCount:  l.ExtensionCount,
		DisbursalAmount: l.DisbursalAmount.String(),
		TotalRepayable:  l.TotalRepayable.String(),
		Version:         l.Version,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	for _, d := range l.DueDates {
		resp.DueDates = append(resp.DueDates, d.Format(time.DateOnly))
	}
	if includeSchedule {
		resp.Schedule = l.Schedule
	}
	return resp
}

// FiguresResponse is the figures document. BestEffort is set when the numbers
// were produced around a defect in the stored loan.
type FiguresResponse struct {
	*loan.Figures
	BestEffort bool `json:"best_effort"`
}

func NewFiguresResponse(f *loan.Figures) FiguresResponse {
	return FiguresResponse{Figures: f, BestEffort: f.BestEffort()}
}
