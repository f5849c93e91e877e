package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"loan-engine/internal/domain/borrower"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

type BorrowerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ borrower.Repository = (*BorrowerRepository)(nil)

func NewBorrowerRepository(db DBPool, logger *slog.Logger) *BorrowerRepository {
	if db == nil {
		panic("DBPool cannot be nil for BorrowerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewBorrowerRepository, using default stderr handler")
	}
	return &BorrowerRepository{
		db:     db,
		logger: logger.With("component", "BorrowerRepository"),
	}
}

func (r *BorrowerRepository) Save(ctx context.Context, b *borrower.Borrower) error {
	if b == nil {
		return fmt.Errorf("%w: borrower cannot be nil", apperrors.ErrInvalidArgument)
	}
	if b.ID == 0 {
		return r.createBorrower(ctx, b)
	}
	return r.updateBorrower(ctx, b)
}

func (r *BorrowerRepository) createBorrower(ctx context.Context, b *borrower.Borrower) error {
	r.logger.InfoContext(ctx, "Attempting to insert new borrower", slog.String("name", b.Name))

	query := `
        INSERT INTO borrowers (name, salary_day, created_at, updated_at)
        VALUES ($1, $2, NOW(), NOW())
        RETURNING id, created_at, updated_at`
	status := "success"
	startTime := time.Now()

	err := r.db.QueryRow(ctx, query, b.Name, b.SalaryDay).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("CreateBorrower", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert borrower", slog.Any("error", err))
		return translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Borrower inserted successfully", slog.Int64("borrowerID", b.ID))
	return nil
}

func (r *BorrowerRepository) updateBorrower(ctx context.Context, b *borrower.Borrower) error {
	query := `
        UPDATE borrowers
        SET name = $1,
            salary_day = $2,
            updated_at = NOW()
        WHERE id = $3`
	status := "success"
	startTime := time.Now()

	cmdTag, err := r.db.Exec(ctx, query, b.Name, b.SalaryDay, b.ID)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("UpdateBorrower", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update borrower", slog.Int64("borrowerID", b.ID), slog.Any("error", err))
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update affected zero rows, borrower likely not found", slog.Int64("borrowerID", b.ID))
		return fmt.Errorf("borrower %d: %w", b.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *BorrowerRepository) FindByID(ctx context.Context, borrowerID int64) (*borrower.Borrower, error) {
	query := `
        SELECT id, name, salary_day, created_at, updated_at
        FROM borrowers
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var b borrower.Borrower
	err := r.db.QueryRow(ctx, query, borrowerID).Scan(&b.ID, &b.Name, &b.SalaryDay, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindBorrowerByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Borrower not found", slog.Int64("borrowerID", borrowerID))
			return nil, fmt.Errorf("borrower %d: %w", borrowerID, apperrors.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan borrower by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get borrower by ID: %w", apperrors.ErrDatabase, err)
	}
	return &b, nil
}

func (r *BorrowerRepository) UpdateSalaryDay(ctx context.Context, borrowerID int64, salaryDay *int) error {
	query := `
        UPDATE borrowers
        SET salary_day = $1, updated_at = NOW()
        WHERE id = $2`
	status := "success"
	startTime := time.Now()

	cmdTag, err := r.db.Exec(ctx, query, salaryDay, borrowerID)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("UpdateSalaryDay", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update salary day", slog.Int64("borrowerID", borrowerID), slog.Any("error", err))
		return fmt.Errorf("%w: failed to update salary day: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("borrower %d: %w", borrowerID, apperrors.ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Salary day updated", slog.Int64("borrowerID", borrowerID))
	return nil
}
