package borrower

import (
	"fmt"
	"strings"
	"time"

	"loan-engine/internal/pkg/apperrors"
)

type Borrower struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SalaryDay *int      `json:"salaryDay,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewBorrower(name string, salaryDay *int) (*Borrower, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "cannot be empty")
	}
	if err := ValidateSalaryDay(salaryDay); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Borrower{
		Name:      name,
		SalaryDay: salaryDay,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateSalaryDay accepts nil (no preference) or a day of month.
func ValidateSalaryDay(day *int) error {
	if day == nil {
		return nil
	}
	if *day < 1 || *day > 31 {
		return apperrors.NewValidationError("salaryDay", fmt.Sprintf("must be between 1 and 31, got %d", *day))
	}
	return nil
}

func (b *Borrower) SetSalaryDay(day *int) {
	b.SalaryDay = day
	b.UpdatedAt = time.Now()
}
