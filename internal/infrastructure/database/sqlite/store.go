// Package sqlite is a single-file store for local runs and tests. It implements
// the same repository contracts as the PostgreSQL store.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	_ "github.com/mattn/go-sqlite3"
)

const timeLayout = time.RFC3339Nano

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens the database at dsn and migrates the schema. Use ":memory:" for a
// throwaway database.
func New(dsn string, logger *slog.Logger) (*Store, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see a different, empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, logger: logger.With("component", "SQLiteStore")}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS borrowers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		salary_day INTEGER CHECK (salary_day BETWEEN 1 AND 31),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		borrower_id INTEGER NOT NULL REFERENCES borrowers(id),
		principal TEXT NOT NULL,
		status TEXT NOT NULL,
		plan TEXT NOT NULL,
		disbursed_at TEXT,
		processed_at TEXT,
		last_extension_date TEXT,
		extension_count INTEGER NOT NULL DEFAULT 0,
		emi_schedule TEXT,
		due_dates TEXT,
		fees_breakdown TEXT,
		disbursal_amount TEXT NOT NULL DEFAULT '0.00',
		total_repayable TEXT NOT NULL DEFAULT '0.00',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);

	CREATE TABLE IF NOT EXISTS penalty_tiers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id INTEGER NOT NULL,
		start_day INTEGER NOT NULL,
		end_day INTEGER,
		percent TEXT NOT NULL,
		gst_percent TEXT,
		tier_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_penalty_tiers_plan ON penalty_tiers(plan_id);

	CREATE TABLE IF NOT EXISTS loan_payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id INTEGER NOT NULL REFERENCES loans(id),
		installment_number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loan_payments_loan ON loan_payments(loan_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// observe records the duration of a store call under the same metric the
// PostgreSQL store uses.
func observe(queryName string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery(queryName, status, time.Since(start))
}

func wrapDBError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullBytes(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
