package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"loan-engine/internal/domain/borrower"
)

type CreateBorrowerRequest struct {
	Name      string `json:"name"`
	SalaryDay *int   `json:"salaryDay,omitempty"`
}

func (r *CreateBorrowerRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}

// UpdateSalaryDayRequest sets the salary day; a null salaryDay clears it.
type UpdateSalaryDayRequest struct {
	SalaryDay *int `json:"salaryDay"`
}

type BorrowerResponse struct {
	BorrowerID string    `json:"borrowerId"`
	Name       string    `json:"name"`
	SalaryDay  *int      `json:"salaryDay,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewBorrowerResponse(b *borrower.Borrower) BorrowerResponse {
	return BorrowerResponse{
		BorrowerID: strconv.FormatInt(b.ID, 10),
		Name:       b.Name,
		SalaryDay:  b.SalaryDay,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}
