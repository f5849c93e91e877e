package borrower

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"loan-engine/internal/pkg/apperrors"
)

const borrowerNotFound = "Borrower not found by repository"

type BorrowerService interface {
	CreateBorrower(ctx context.Context, name string, salaryDay *int) (*Borrower, error)
	GetBorrower(ctx context.Context, borrowerID int64) (*Borrower, error)
	UpdateSalaryDay(ctx context.Context, borrowerID int64, salaryDay *int) (*Borrower, error)
	// SalaryDay returns the borrower's salary day, 0 when none is recorded.
	SalaryDay(ctx context.Context, borrowerID int64) (int, error)
}

var _ BorrowerService = (*borrowerService)(nil)

type borrowerService struct {
	repo   Repository
	logger *slog.Logger
}

func NewBorrowerService(repo Repository, logger *slog.Logger) BorrowerService {
	if repo == nil {
		panic("borrower repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewBorrowerService, using default stderr handler")
	}
	return &borrowerService{
		repo:   repo,
		logger: logger.With(slog.String("component", "borrowerService")),
	}
}

func (s *borrowerService) CreateBorrower(ctx context.Context, name string, salaryDay *int) (*Borrower, error) {
	s.logger.InfoContext(ctx, "Attempting to create new borrower")

	b, err := NewBorrower(name, salaryDay)
	if err != nil {
		s.logger.WarnContext(ctx, "Validation failed for new borrower", slog.Any("error", err))
		return nil, err
	}

	if err := s.repo.Save(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new borrower", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to save new borrower: %v", apperrors.ErrInternalServer, err)
	}

	s.logger.InfoContext(ctx, "Successfully created new borrower", slog.Int64("borrowerID", b.ID))
	return b, nil
}

func (s *borrowerService) GetBorrower(ctx context.Context, borrowerID int64) (*Borrower, error) {
	logger := s.logger.With(slog.Int64("borrowerID", borrowerID))
	b, err := s.repo.FindByID(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, borrowerNotFound)
			return nil, fmt.Errorf("%w: borrower %d", apperrors.ErrNotFound, borrowerID)
		}
		logger.ErrorContext(ctx, "Repository error finding borrower", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get borrower %d: %v", apperrors.ErrInternalServer, borrowerID, err)
	}
	return b, nil
}

func (s *borrowerService) UpdateSalaryDay(ctx context.Context, borrowerID int64, salaryDay *int) (*Borrower, error) {
	logger := s.logger.With(slog.Int64("borrowerID", borrowerID))
	logger.InfoContext(ctx, "Attempting to update borrower salary day")

	if err := ValidateSalaryDay(salaryDay); err != nil {
		logger.WarnContext(ctx, "Validation failed: salary day out of range")
		return nil, err
	}

	b, err := s.GetBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if sameDay(b.SalaryDay, salaryDay) {
		logger.InfoContext(ctx, "No salary day change needed, skipping save")
		return b, nil
	}

	if err := s.repo.UpdateSalaryDay(ctx, borrowerID, salaryDay); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.ErrorContext(ctx, "Borrower disappeared before save completed")
			return nil, fmt.Errorf("%w: borrower %d", apperrors.ErrNotFound, borrowerID)
		}
		logger.ErrorContext(ctx, "Repository failed to save salary day", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to update salary day for borrower %d: %v", apperrors.ErrInternalServer, borrowerID, err)
	}
	b.SetSalaryDay(salaryDay)

	logger.InfoContext(ctx, "Successfully updated borrower salary day")
	return b, nil
}

func (s *borrowerService) SalaryDay(ctx context.Context, borrowerID int64) (int, error) {
	b, err := s.GetBorrower(ctx, borrowerID)
	if err != nil {
		return 0, err
	}
	if b.SalaryDay == nil {
		return 0, nil
	}
	return *b.SalaryDay, nil
}

func sameDay(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
