package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loan-engine/internal/domain/borrower"
	"loan-engine/internal/pkg/apperrors"
)

var _ borrower.Repository = (*Store)(nil)

func (s *Store) Save(ctx context.Context, b *borrower.Borrower) (err error) {
	defer observe("SaveBorrower", time.Now(), &err)

	if b == nil {
		return fmt.Errorf("%w: borrower cannot be nil", apperrors.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	var res sql.Result

	if b.ID == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO borrowers (name, salary_day, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			b.Name, nullDay(b.SalaryDay), formatTime(now), formatTime(now))
		if err != nil {
			return wrapDBError(err)
		}
		if b.ID, err = res.LastInsertId(); err != nil {
			return wrapDBError(err)
		}
		b.CreatedAt, b.UpdatedAt = now, now
		return nil
	}

	res, err = s.db.ExecContext(ctx, `
		UPDATE borrowers SET name = ?, salary_day = ?, updated_at = ? WHERE id = ?`,
		b.Name, nullDay(b.SalaryDay), formatTime(now), b.ID)
	if err != nil {
		return wrapDBError(err)
	}
	return requireRow(res, "borrower", b.ID)
}

func (s *Store) FindByID(ctx context.Context, borrowerID int64) (_ *borrower.Borrower, err error) {
	defer observe("FindBorrowerByID", time.Now(), &err)

	var b borrower.Borrower
	var day sql.NullInt64
	var createdAt, updatedAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, name, salary_day, created_at, updated_at FROM borrowers WHERE id = ?`, borrowerID).
		Scan(&b.ID, &b.Name, &day, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("borrower %d: %w", borrowerID, apperrors.ErrNotFound)
		}
		return nil, wrapDBError(err)
	}
	if day.Valid {
		d := int(day.Int64)
		b.SalaryDay = &d
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, wrapDBError(err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, wrapDBError(err)
	}
	return &b, nil
}

func (s *Store) UpdateSalaryDay(ctx context.Context, borrowerID int64, salaryDay *int) (err error) {
	defer observe("UpdateSalaryDay", time.Now(), &err)

	res, err := s.db.ExecContext(ctx, `
		UPDATE borrowers SET salary_day = ?, updated_at = ? WHERE id = ?`,
		nullDay(salaryDay), formatTime(time.Now()), borrowerID)
	if err != nil {
		return wrapDBError(err)
	}
	return requireRow(res, "borrower", borrowerID)
}

func nullDay(day *int) sql.NullInt64 {
	if day == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*day), Valid: true}
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, apperrors.ErrNotFound)
	}
	return nil
}
