package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordedPerTransaction(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})

	opts := fastOptions()
	opts.Metadata = map[string]any{"operation": "check-in"}

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		_, _ = txn.Exec(ctx, "UPDATE spots SET status = 'occupied'")
		_, _ = txn.Exec(ctx, "INSERT INTO sessions DEFAULT VALUES")
		return nil, nil
	}, opts)
	require.NoError(t, err)
	require.True(t, res.Success)

	m, ok := mgr.GetTransactionMetrics(res.Context.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCommitted, m.Status)
	assert.Equal(t, 2, m.OperationCount)
	assert.Equal(t, 1, m.RetryCount)
	assert.Equal(t, "check-in", m.Metadata["operation"])
	assert.False(t, m.EndTime.IsZero())
	assert.GreaterOrEqual(t, m.Duration, time.Duration(0))
}

func TestMetrics_EveryAttemptKeepsItsOwnEntry(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})

	attempt := 0
	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		attempt++
		if attempt < 3 {
			return nil, &pgconn.PgError{Code: "40P01"}
		}
		return nil, nil
	}, fastOptions())
	require.NoError(t, err)
	require.True(t, res.Success)

	all := mgr.GetAllTransactionMetrics()
	require.Len(t, all, 3)

	byStatus := map[TxStatus]int{}
	for _, m := range all {
		byStatus[m.Status]++
	}
	assert.Equal(t, 2, byStatus[StatusFailed])
	assert.Equal(t, 1, byStatus[StatusCommitted])
}

func TestMetrics_Statistics(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := mgr.Execute(ctx, func(ctx context.Context, txn *Txn) (any, error) {
			return nil, nil
		}, fastOptions())
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	opts := fastOptions()
	opts.EnableRetry = false
	res, err := mgr.Execute(ctx, func(ctx context.Context, txn *Txn) (any, error) {
		return nil, errors.New("business rule violated")
	}, opts)
	require.NoError(t, err)
	require.False(t, res.Success)

	stats := mgr.GetTransactionStatistics()
	assert.Equal(t, 0, stats.ActiveCount)
	assert.Equal(t, 4, stats.CompletedCount)
	assert.Equal(t, 3, stats.CommittedCount)
	assert.Equal(t, 1, stats.FailedCount)
	assert.GreaterOrEqual(t, stats.AverageDuration, time.Duration(0))
}

func TestMetrics_GetUnknownID(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})

	m, ok := mgr.GetTransactionMetrics("no-such-tx")
	assert.False(t, ok)
	assert.Nil(t, m)
}

func TestMetrics_GetReturnsCopy(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		return nil, nil
	}, fastOptions())
	require.NoError(t, err)

	first, ok := mgr.GetTransactionMetrics(res.Context.ID)
	require.True(t, ok)
	first.Status = StatusFailed

	second, ok := mgr.GetTransactionMetrics(res.Context.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCommitted, second.Status)
}

func TestMetrics_ClearOldMetrics(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := mgr.Execute(ctx, func(ctx context.Context, txn *Txn) (any, error) {
			return nil, nil
		}, fastOptions())
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	// Entries just created are newer than the cutoff.
	assert.Equal(t, 0, mgr.ClearOldMetrics(time.Hour))

	// A zero retention prunes everything that has already started.
	removed := mgr.ClearOldMetrics(-time.Second)
	assert.Equal(t, 2, removed)
	assert.Empty(t, mgr.GetAllTransactionMetrics())
}

func TestMetricsStore_ClearOlderThanCutoff(t *testing.T) {
	store := NewMetricsStore(nil)

	old := newTxContext(DefaultTxOptions())
	old.StartTime = time.Now().Add(-48 * time.Hour)
	store.begin(old)

	fresh := newTxContext(DefaultTxOptions())
	store.begin(fresh)

	removed := store.ClearOlderThan(time.Now().Add(-24 * time.Hour))
	assert.Equal(t, 1, removed)

	_, ok := store.Get(old.ID)
	assert.False(t, ok)
	_, ok = store.Get(fresh.ID)
	assert.True(t, ok)
}
