package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"
	"loan-engine/internal/pkg/money"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
}

// CreateLoan handles the creation of a new loan.
//
// @Summary Create a new loan
// @Description Creates a draft loan for an existing borrower with the given principal and plan snapshot.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan creation request payload"
// @Success 201 {object} dto.LoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalid(err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, invalid(err))
		return
	}
	plan, err := req.Plan.ToDomain()
	if err != nil {
		respondError(w, invalid(err))
		return
	}

	created, err := h.service.CreateLoan(r.Context(), req.BorrowerID, money.MustParse(req.Principal), plan)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(created, false))
}

// GetLoan retrieves the stored state of a loan.
//
// @Summary Retrieve loan details
// @Description Returns the stored loan. Add `include=schedule` to embed the stored installment schedule.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param include query string false "Use 'schedule' to include the stored schedule"
// @Success 200 {object} dto.LoanResponse "Loan details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, invalid(err))
		return
	}

	l, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}
	includeSchedule := r.URL.Query().Get("include") == "schedule"
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l, includeSchedule))
}

// AttachPlan replaces the plan snapshot of a loan that has not been processed.
//
// @Summary Attach a plan to a loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.PlanRequest true "Plan snapshot"
// @Success 200 {object} dto.LoanResponse "Plan attached"
// @Failure 400 {object} dto.ErrorResponse "Invalid plan"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan already processed or changed concurrently"
// @Router /loans/{loanID}/plan [put]
// @Security BearerAuth
func (h *LoanHandler) AttachPlan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, invalid(err))
		return
	}
	var req dto.PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalid(err))
		return
	}
	plan, err := req.ToDomain()
	if err != nil {
		respondError(w, invalid(err))
		return
	}

	updated, err := h.service.AttachPlan(r.Context(), loanID, plan)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(updated, false))
}

// GetFigures calculates the current figures of a loan.
//
// @Summary Calculate loan figures
// @Description Returns interest, fees, disbursal, penalty, total and the repayment schedule as of today. Editable loans are recomputed from the plan; loans in repayment are computed from their stored schedule.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.FiguresResponse "Current figures"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID or loan shape"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/figures [get]
// @Security BearerAuth
func (h *LoanHandler) GetFigures(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, invalid(err))
		return
	}

	figures, err := h.service.GetFigures(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}
	if figures.BestEffort() {
		h.logger.WarnContext(r.Context(), "Serving best-effort figures", "loanID", loanID, "diagnostics", len(figures.Diagnostics))
	}
	respondJSON(w, http.StatusOK, dto.NewFiguresResponse(figures))
}

// ProcessLoan freezes the schedule of a loan and moves it into repayment.
//
// @Summary Process a loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.ProcessLoanRequest false "Processing date, defaults to now"
// @Success 200 {object} dto.FiguresResponse "Figures frozen at processing"
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan already processed"
// @Router /loans/{loanID}/process [post]
// @Security BearerAuth
func (h *LoanHandler) ProcessLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, invalid(err))
		return
	}
	var req dto.ProcessLoanRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, invalid(err))
			return
		}
	}
	processedAt, err := req.Time()
	if err != nil {
		respondError(w, invalid(err))
		return
	}

	figures, err := h.service.ProcessLoan(r.Context(), loanID, processedAt)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewFiguresResponse(figures))
}

// ExtendLoan pushes the unpaid due dates of a loan back.
//
// @Summary Extend a loan's tenor
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.ExtendLoanRequest true "Extension in days"
// @Success 200 {object} dto.LoanResponse "Loan with extended schedule"
// @Failure 400 {object} dto.ErrorResponse "Invalid extension"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan not in repayment or changed concurrently"
// @Router /loans/{loanID}/extensions [post]
// @Security BearerAuth
func (h *LoanHandler) ExtendLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, invalid(err))
		return
	}
	var req dto.ExtendLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalid(err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, invalid(err))
		return
	}

	extended, err := h.service.ExtendLoan(r.Context(), loanID, req.Days)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(extended, true))
}

// Quote calculates the figures of a prospective loan without storing anything.
//
// @Summary Quote a prospective loan
// @Tags Quotes
// @Accept json
// @Produce json
// @Param request body dto.QuoteRequest true "Principal and plan"
// @Success 200 {object} dto.FiguresResponse "Quoted figures"
// @Failure 400 {object} dto.ErrorResponse "Invalid request or plan"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /quotes [post]
// @Security BearerAuth
func (h *LoanHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req dto.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalid(err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, invalid(err))
		return
	}
	plan, err := req.Plan.ToDomain()
	if err != nil {
		respondError(w, invalid(err))
		return
	}

	figures, err := h.service.PreviewFigures(r.Context(), req.BorrowerID, money.MustParse(req.Principal), plan)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewFiguresResponse(figures))
}
