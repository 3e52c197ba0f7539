package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Success(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		_, err := txn.Exec(ctx, "INSERT INTO t VALUES (1)")
		return "done", err
	}, fastOptions())

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "done", res.Value)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, StatusCommitted, res.Context.Status)
	assert.False(t, res.Context.EndTime.Before(res.Context.StartTime))
	assert.Equal(t, 1, res.Context.OperationCount())

	require.Equal(t, 1, executor.begun())
	assert.True(t, executor.lastTx().committed)
	assert.False(t, executor.lastTx().rolledBack)

	// Finished transactions must leave the active registry.
	assert.Empty(t, mgr.GetActiveTransactions())
}

func TestExecute_OptionValidation(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})

	cases := []struct {
		name string
		mut  func(*TxOptions)
	}{
		{"negative timeout", func(o *TxOptions) { o.Timeout = -time.Second }},
		{"negative max wait", func(o *TxOptions) { o.MaxWait = -time.Second }},
		{"negative max retries", func(o *TxOptions) { o.MaxRetries = -1 }},
		{"negative backoff", func(o *TxOptions) { o.RetryBackoff = -time.Millisecond }},
		{"unknown isolation", func(o *TxOptions) { o.IsolationLevel = "bogus" }},
		{"unknown access mode", func(o *TxOptions) { o.AccessMode = "bogus" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultTxOptions()
			tc.mut(&opts)

			res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
				t.Fatal("callback must not run on invalid options")
				return nil, nil
			}, opts)

			require.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestExecute_NonRetryableErrorFailsFirstAttempt(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	bizErr := errors.New("insufficient funds")
	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		return nil, bizErr
	}, fastOptions())

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, KindGeneric, KindOf(res.Err))
	assert.ErrorIs(t, res.Err, bizErr)
	assert.Equal(t, StatusFailed, res.Context.Status)

	require.Equal(t, 1, executor.begun())
	assert.True(t, executor.lastTx().rolledBack)
	assert.Empty(t, mgr.GetActiveTransactions())
}

func TestExecute_DeadlockRetriesThenSucceeds(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	var attemptIDs []string
	attempt := 0
	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		attempt++
		attemptIDs = append(attemptIDs, txn.Context().ID)
		if attempt < 3 {
			return nil, &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return attempt, nil
	}, fastOptions())

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.RetryCount)
	assert.Equal(t, 3, res.Value)
	assert.Equal(t, 3, executor.begun())

	// Every attempt runs under a fresh transaction context and id.
	require.Len(t, attemptIDs, 3)
	assert.NotEqual(t, attemptIDs[0], attemptIDs[1])
	assert.NotEqual(t, attemptIDs[1], attemptIDs[2])
	assert.Equal(t, res.Context.ID, attemptIDs[2])
}

func TestExecute_RetriesExhausted(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	opts := fastOptions()
	opts.MaxRetries = 2

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		return nil, &pgconn.PgError{Code: "40001", Message: "serialization failure"}
	}, opts)

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, 2, res.RetryCount)
	assert.Equal(t, KindDeadlock, KindOf(res.Err))
	assert.Equal(t, 2, executor.begun())
}

func TestExecute_RetryDisabledRunsOnce(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	opts := fastOptions()
	opts.EnableRetry = false

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		return nil, &pgconn.PgError{Code: "40P01"}
	}, opts)

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, 1, executor.begun())
}

func TestExecute_CallbackTimeout(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	opts := fastOptions()
	opts.EnableRetry = false
	opts.Timeout = 10 * time.Millisecond

	release := make(chan struct{})
	defer close(release)

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		<-release
		return nil, nil
	}, opts)

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, KindTimeout, KindOf(res.Err))
	assert.Equal(t, StatusFailed, res.Context.Status)
	assert.True(t, executor.lastTx().rolledBack)
	assert.Empty(t, mgr.GetActiveTransactions())
}

func TestExecute_TimeoutRetriesUntilBudgetExhausted(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	opts := fastOptions()
	opts.Timeout = 5 * time.Millisecond
	opts.MaxRetries = 3

	release := make(chan struct{})
	defer close(release)

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return nil, nil
		}
	}, opts)

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, 3, res.RetryCount)
	assert.Equal(t, KindTimeout, KindOf(res.Err))
	assert.Equal(t, 3, executor.begun())
}

func TestExecute_CommitFailureClassified(t *testing.T) {
	executor := &stubExecutor{
		configure: func(tx *stubTx) {
			tx.commitErr = &pgconn.PgError{Code: "40001", Message: "could not serialize"}
		},
	}
	mgr := newTestManager(executor)

	opts := fastOptions()
	opts.MaxRetries = 2

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		return "value", nil
	}, opts)

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, KindDeadlock, KindOf(res.Err))
	// Commit conflicts are transient: both attempts must have run.
	assert.Equal(t, 2, executor.begun())
}

func TestExecute_BeginFailure(t *testing.T) {
	executor := &stubExecutor{beginErr: errors.New("pool exhausted")}
	mgr := newTestManager(executor)

	opts := fastOptions()
	opts.EnableRetry = false

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		t.Fatal("callback must not run when begin fails")
		return nil, nil
	}, opts)

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, KindGeneric, KindOf(res.Err))
}

func TestExecute_ParentCancellationStopsRetries(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	ctx, cancel := context.WithCancel(context.Background())

	opts := fastOptions()
	opts.RetryBackoff = time.Hour // force the retry wait to lose to cancellation

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := mgr.Execute(ctx, func(ctx context.Context, txn *Txn) (any, error) {
		return nil, &pgconn.PgError{Code: "40P01"}
	}, opts)

	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, 1, executor.begun())
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestGetTxnAndQuerier(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	// Outside a transaction there is nothing in context.
	assert.Nil(t, mgr.GetTxn(context.Background()))

	res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
		assert.Same(t, txn, mgr.GetTxn(ctx))
		assert.Same(t, txn, mgr.GetQuerier(ctx))
		return nil, nil
	}, fastOptions())

	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestRunInTransaction_ReusesAmbientTransaction(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	err := mgr.RunInTransaction(context.Background(), func(ctx context.Context) error {
		// Nested call must not begin a second transaction.
		return mgr.RunInTransaction(ctx, func(ctx context.Context) error {
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 1, executor.begun())
}

func TestRunInTransaction_PropagatesClassifiedError(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	bizErr := errors.New("spot already taken")
	err := mgr.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return bizErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, bizErr)
	assert.Equal(t, KindGeneric, KindOf(err))
}

func TestReadOnly_UsesReadOnlyAccessMode(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	var seen pgx.TxAccessMode
	err := mgr.ReadOnly(context.Background(), func(ctx context.Context) error {
		seen = mgr.GetTxn(ctx).Context().AccessMode
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, pgx.ReadOnly, seen)
}

func TestExecute_ConcurrentTransactionsAreIsolated(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	const workers = 16
	ids := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := mgr.Execute(context.Background(), func(ctx context.Context, txn *Txn) (any, error) {
				ids[i] = txn.Context().ID
				_, _ = txn.Exec(ctx, "SELECT 1")
				return nil, nil
			}, fastOptions())
			assert.NoError(t, err)
			assert.True(t, res.Success)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for _, txID := range ids {
		require.NotEmpty(t, txID)
		assert.False(t, seen[txID], "transaction id %s reused", txID)
		seen[txID] = true
	}
	assert.Equal(t, workers, executor.begun())
	assert.Empty(t, mgr.GetActiveTransactions())
}
