package handler

import (
	"log/slog"
	"net/http"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/borrower"
)

type BorrowerHandler struct {
	service borrower.BorrowerService
	logger  *slog.Logger
}

func NewBorrowerHandler(s borrower.BorrowerService, l *slog.Logger) *BorrowerHandler {
	return &BorrowerHandler{
		service: s,
		logger:  l.With("component", "BorrowerHandler"),
	}
}

// CreateBorrower registers a borrower.
//
// @Summary Create a borrower
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param request body dto.CreateBorrowerRequest true "Borrower name and optional salary day"
// @Success 201 {object} dto.BorrowerResponse "Borrower created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /borrowers [post]
// @Security BearerAuth
func (h *BorrowerHandler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBorrowerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalid(err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, invalid(err))
		return
	}

	b, err := h.service.CreateBorrower(r.Context(), req.Name, req.SalaryDay)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewBorrowerResponse(b))
}

// GetBorrower
//
// @Summary Retrieve a borrower
// @Tags Borrowers
// @Produce json
// @Param borrowerID path int true "Borrower ID"
// @Success 200 {object} dto.BorrowerResponse "Borrower"
// @Failure 400 {object} dto.ErrorResponse "Invalid borrower ID"
// @Failure 404 {object} dto.ErrorResponse "Borrower not found"
// @Router /borrowers/{borrowerID} [get]
// @Security BearerAuth
func (h *BorrowerHandler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := getIDFromURL(r, "borrowerID")
	if err != nil {
		respondError(w, invalid(err))
		return
	}

	b, err := h.service.GetBorrower(r.Context(), borrowerID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewBorrowerResponse(b))
}

// UpdateSalaryDay sets or clears the day of month the borrower is paid.
//
// @Summary Update a borrower's salary day
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrowerID path int true "Borrower ID"
// @Param request body dto.UpdateSalaryDayRequest true "New salary day, null to clear"
// @Success 200 {object} dto.BorrowerResponse "Updated borrower"
// @Failure 400 {object} dto.ErrorResponse "Salary day out of range"
// @Failure 404 {object} dto.ErrorResponse "Borrower not found"
// @Router /borrowers/{borrowerID}/salary-day [put]
// @Security BearerAuth
func (h *BorrowerHandler) UpdateSalaryDay(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := getIDFromURL(r, "borrowerID")
	if err != nil {
		respondError(w, invalid(err))
		return
	}
	var req dto.UpdateSalaryDayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalid(err))
		return
	}

	b, err := h.service.UpdateSalaryDay(r.Context(), borrowerID, req.SalaryDay)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewBorrowerResponse(b))
}
