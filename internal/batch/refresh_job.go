package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// FiguresRefresher is the part of the loan service the refresh job drives.
type FiguresRefresher interface {
	ListActiveRepaymentLoanIDs(ctx context.Context) ([]int64, error)
	RefreshFigures(ctx context.Context, loanID int64) error
}

// RefreshFiguresJob recalculates every loan in active repayment so corrected
// totals reach storage even for loans nobody reads.
type RefreshFiguresJob struct {
	loans       FiguresRefresher
	concurrency int
	logger      *slog.Logger
}

func NewRefreshFiguresJob(loans FiguresRefresher, concurrency int, logger *slog.Logger) *RefreshFiguresJob {
	if loans == nil || logger == nil {
		panic("RefreshFiguresJob dependencies cannot be nil")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &RefreshFiguresJob{
		loans:       loans,
		concurrency: concurrency,
		logger:      logger.With("job", "RefreshFigures"),
	}
}

func (j *RefreshFiguresJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting loan figures refresh job.")

	loanIDs, err := j.loans.ListActiveRepaymentLoanIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to list loans in active repayment, aborting job.", slog.Any("error", err))
		monitoring.RecordRefreshRun("failed")
		return fmt.Errorf("cannot run job, failed to list active loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched loans in active repayment.", slog.Int("count", len(loanIDs)))

	var refreshed, skipped, failed atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(j.concurrency)
	for _, loanID := range loanIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			logCtx := j.logger.With(slog.Int64("loanID", loanID))
			refreshErr := j.loans.RefreshFigures(ctx, loanID)
			switch {
			case refreshErr == nil:
				refreshed.Add(1)
			case errors.Is(refreshErr, apperrors.ErrNotFound):
				logCtx.WarnContext(ctx, "Loan disappeared before it could be refreshed", slog.Any("error", refreshErr))
				skipped.Add(1)
			default:
				logCtx.ErrorContext(ctx, "Failed to refresh loan figures", slog.Any("error", refreshErr))
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("total_active_loans", len(loanIDs)),
		slog.Int("loans_refreshed", int(refreshed.Load())),
		slog.Int("loans_skipped", int(skipped.Load())),
		slog.Int("errors_encountered", int(failed.Load())),
	)

	if err := ctx.Err(); err != nil {
		summaryLog.WarnContext(ctx, "Loan figures refresh job interrupted.", slog.Any("error", err))
		monitoring.RecordRefreshRun("interrupted")
		return fmt.Errorf("refresh job interrupted: %w", err)
	}
	if n := failed.Load(); n > 0 {
		summaryLog.WarnContext(ctx, "Loan figures refresh job finished with errors.")
		monitoring.RecordRefreshRun("partial")
		return fmt.Errorf("job completed with %d errors", n)
	}
	summaryLog.InfoContext(ctx, "Loan figures refresh job finished successfully.")
	monitoring.RecordRefreshRun("success")
	return nil
}

// Schedule registers the job on c. Each run gets its own timeout.
func (j *RefreshFiguresJob) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	if timeout <= 0 {
		timeout = time.Hour
	}
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := j.Run(ctx); err != nil {
			j.logger.Error("Loan figures refresh job finished with error", slog.Any("error", err))
		}
	})
}
