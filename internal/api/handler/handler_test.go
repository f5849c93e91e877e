package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-engine/internal/domain/borrower"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/money"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, borrowerID int64, principal money.Money, plan loan.LoanPlan) (*loan.Loan, error) {
	args := m.Called(ctx, borrowerID, principal, plan)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) AttachPlan(ctx context.Context, loanID int64, plan loan.LoanPlan) (*loan.Loan, error) {
	args := m.Called(ctx, loanID, plan)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) PreviewFigures(ctx context.Context, borrowerID int64, principal money.Money, plan loan.LoanPlan) (*loan.Figures, error) {
	args := m.Called(ctx, borrowerID, principal, plan)
	if f, ok := args.Get(0).(*loan.Figures); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetFigures(ctx context.Context, loanID int64) (*loan.Figures, error) {
	args := m.Called(ctx, loanID)
	if f, ok := args.Get(0).(*loan.Figures); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) RefreshFigures(ctx context.Context, loanID int64) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}

func (m *MockLoanService) ProcessLoan(ctx context.Context, loanID int64, processedAt time.Time) (*loan.Figures, error) {
	args := m.Called(ctx, loanID, processedAt)
	if f, ok := args.Get(0).(*loan.Figures); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ExtendLoan(ctx context.Context, loanID int64, days int) (*loan.Loan, error) {
	args := m.Called(ctx, loanID, days)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListActiveRepaymentLoanIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockBorrowerService struct {
	mock.Mock
}

func (m *MockBorrowerService) CreateBorrower(ctx context.Context, name string, salaryDay *int) (*borrower.Borrower, error) {
	args := m.Called(ctx, name, salaryDay)
	if b, ok := args.Get(0).(*borrower.Borrower); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBorrowerService) GetBorrower(ctx context.Context, borrowerID int64) (*borrower.Borrower, error) {
	args := m.Called(ctx, borrowerID)
	if b, ok := args.Get(0).(*borrower.Borrower); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBorrowerService) UpdateSalaryDay(ctx context.Context, borrowerID int64, salaryDay *int) (*borrower.Borrower, error) {
	args := m.Called(ctx, borrowerID, salaryDay)
	if b, ok := args.Get(0).(*borrower.Borrower); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBorrowerService) SalaryDay(ctx context.Context, borrowerID int64) (int, error) {
	args := m.Called(ctx, borrowerID)
	return args.Int(0), args.Error(1)
}

// newRequest builds a request whose chi route context carries the given URL
// parameters as key/value pairs.
func newRequest(method, target string, body string, params ...string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}
