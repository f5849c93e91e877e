package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"loan-engine/internal/batch"
	"loan-engine/internal/pkg/apperrors"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFiguresRefresher struct {
	mock.Mock
}

func (m *MockFiguresRefresher) ListActiveRepaymentLoanIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFiguresRefresher) RefreshFigures(ctx context.Context, loanID int64) error {
	return m.Called(ctx, loanID).Error(0)
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRefreshFiguresJob_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("should refresh every active loan", func(t *testing.T) {
		refresher := new(MockFiguresRefresher)
		refresher.On("ListActiveRepaymentLoanIDs", ctx).Return([]int64{1, 2, 3}, nil).Once()
		refresher.On("RefreshFigures", ctx, mock.AnythingOfType("int64")).Return(nil).Times(3)

		err := batch.NewRefreshFiguresJob(refresher, 2, testLogger).Run(ctx)

		assert.NoError(t, err)
		refresher.AssertExpectations(t)
	})

	t.Run("should do nothing when no loan is active", func(t *testing.T) {
		refresher := new(MockFiguresRefresher)
		refresher.On("ListActiveRepaymentLoanIDs", ctx).Return([]int64{}, nil).Once()

		err := batch.NewRefreshFiguresJob(refresher, 4, testLogger).Run(ctx)

		assert.NoError(t, err)
		refresher.AssertNotCalled(t, "RefreshFigures", mock.Anything, mock.Anything)
	})

	t.Run("should keep going past failures and report them", func(t *testing.T) {
		refresher := new(MockFiguresRefresher)
		refresher.On("ListActiveRepaymentLoanIDs", ctx).Return([]int64{1, 2, 3}, nil).Once()
		refresher.On("RefreshFigures", ctx, int64(1)).Return(errors.New("db down")).Once()
		refresher.On("RefreshFigures", ctx, int64(2)).Return(apperrors.ErrNotFound).Once()
		refresher.On("RefreshFigures", ctx, int64(3)).Return(nil).Once()

		err := batch.NewRefreshFiguresJob(refresher, 1, testLogger).Run(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 errors")
		refresher.AssertExpectations(t)
	})

	t.Run("should abort when the loan list cannot be read", func(t *testing.T) {
		refresher := new(MockFiguresRefresher)
		refresher.On("ListActiveRepaymentLoanIDs", ctx).Return(nil, errors.New("timeout")).Once()

		err := batch.NewRefreshFiguresJob(refresher, 1, testLogger).Run(ctx)

		assert.ErrorContains(t, err, "failed to list active loans")
	})

	t.Run("should stop on a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		refresher := new(MockFiguresRefresher)
		refresher.On("ListActiveRepaymentLoanIDs", cancelled).Return([]int64{1, 2}, nil).Once()

		err := batch.NewRefreshFiguresJob(refresher, 1, testLogger).Run(cancelled)

		assert.ErrorIs(t, err, context.Canceled)
		refresher.AssertNotCalled(t, "RefreshFigures", mock.Anything, mock.Anything)
	})
}

type boundedRefresher struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (b *boundedRefresher) ListActiveRepaymentLoanIDs(context.Context) ([]int64, error) {
	return []int64{1, 2, 3, 4, 5, 6, 7, 8}, nil
}

func (b *boundedRefresher) RefreshFigures(context.Context, int64) error {
	b.mu.Lock()
	b.active++
	if b.active > b.maxSeen {
		b.maxSeen = b.active
	}
	b.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return nil
}

func TestRefreshFiguresJob_RespectsConcurrencyLimit(t *testing.T) {
	refresher := &boundedRefresher{}

	err := batch.NewRefreshFiguresJob(refresher, 3, testLogger).Run(context.Background())

	require.NoError(t, err)
	assert.LessOrEqual(t, refresher.maxSeen, 3)
	assert.GreaterOrEqual(t, refresher.maxSeen, 1)
}

func TestRefreshFiguresJob_Schedule(t *testing.T) {
	job := batch.NewRefreshFiguresJob(new(MockFiguresRefresher), 1, testLogger)
	c := cron.New()

	t.Run("should register a valid spec", func(t *testing.T) {
		id, err := job.Schedule(c, "0 3 * * *", time.Minute)
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Len(t, c.Entries(), 1)
	})

	t.Run("should reject an invalid spec", func(t *testing.T) {
		_, err := job.Schedule(c, "every tuesday", time.Minute)
		assert.Error(t, err)
	})
}
