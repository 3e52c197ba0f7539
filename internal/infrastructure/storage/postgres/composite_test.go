package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwise/internal/core/tx"
)

func TestExecuteSequence_Success(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	ops := []Operation{
		{Name: "reserve spot", Fn: func(ctx context.Context, txn *Txn) (any, error) {
			_, err := txn.Exec(ctx, "UPDATE spots SET status = 'reserved'")
			return "reserved", err
		}},
		{Name: "open session", Fn: func(ctx context.Context, txn *Txn) (any, error) {
			_, err := txn.Exec(ctx, "INSERT INTO sessions DEFAULT VALUES")
			return "opened", err
		}},
	}

	res, err := mgr.ExecuteSequence(context.Background(), ops, fastOptions())
	require.NoError(t, err)
	require.True(t, res.Success)

	values, ok := res.Value.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"reserved", "opened"}, values)

	// Each operation is bracketed by its own savepoint.
	stmts := executor.lastTx().stmts()
	require.Len(t, stmts, 6)
	assert.True(t, strings.HasPrefix(stmts[0], "SAVEPOINT "))
	assert.Equal(t, "UPDATE spots SET status = 'reserved'", stmts[1])
	assert.True(t, strings.HasPrefix(stmts[2], "RELEASE SAVEPOINT "))
	assert.True(t, strings.HasPrefix(stmts[3], "SAVEPOINT "))
	assert.Equal(t, "INSERT INTO sessions DEFAULT VALUES", stmts[4])
	assert.True(t, strings.HasPrefix(stmts[5], "RELEASE SAVEPOINT "))

	assert.True(t, executor.lastTx().committed)
	assert.Empty(t, res.Context.Savepoints)
	assert.Equal(t, 2, res.Context.SavepointsCreated())
}

func TestExecuteSequence_FailureAbortsWholeBatch(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	opErr := errors.New("spot already occupied")
	firstRan := false
	ops := []Operation{
		{Name: "first", Fn: func(ctx context.Context, txn *Txn) (any, error) {
			firstRan = true
			return nil, nil
		}},
		{Name: "second", Fn: func(ctx context.Context, txn *Txn) (any, error) {
			return nil, opErr
		}},
		{Name: "third", Fn: func(ctx context.Context, txn *Txn) (any, error) {
			t.Error("third operation must not run after a failure")
			return nil, nil
		}},
	}

	opts := fastOptions()
	opts.EnableRetry = false

	res, err := mgr.ExecuteSequence(context.Background(), ops, opts)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.True(t, firstRan)

	// The error names the failing step.
	assert.ErrorIs(t, res.Err, opErr)
	assert.Contains(t, res.Err.Error(), "operation 1 (second)")

	// The failing step was rolled back to its savepoint and the outer
	// transaction never committed, so nothing becomes visible.
	stmts := executor.lastTx().stmts()
	require.NotEmpty(t, stmts)
	assert.True(t, strings.HasPrefix(stmts[len(stmts)-1], "ROLLBACK TO SAVEPOINT "))
	assert.False(t, executor.lastTx().committed)
	assert.True(t, executor.lastTx().rolledBack)
}

func TestExecuteGrouped_RunsSequentiallyInOneTransaction(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	var order []string
	ops := []Operation{
		{Name: "a", Fn: func(ctx context.Context, txn *Txn) (any, error) {
			order = append(order, "a")
			return 1, nil
		}},
		{Name: "b", Fn: func(ctx context.Context, txn *Txn) (any, error) {
			order = append(order, "b")
			return 2, nil
		}},
	}

	res, err := mgr.ExecuteGrouped(context.Background(), ops, fastOptions())
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []any{1, 2}, res.Value)
	assert.Equal(t, "grouped", res.Context.Metadata["execution_mode"])
	assert.Equal(t, 1, executor.begun())
}

func TestExecuteGrouped_FailureNamesOperation(t *testing.T) {
	mgr := newTestManager(&stubExecutor{})

	opErr := errors.New("rate lookup failed")
	ops := []Operation{
		{Name: "ok", Fn: func(ctx context.Context, txn *Txn) (any, error) { return nil, nil }},
		{Name: "pricing", Fn: func(ctx context.Context, txn *Txn) (any, error) { return nil, opErr }},
	}

	opts := fastOptions()
	opts.EnableRetry = false

	res, err := mgr.ExecuteGrouped(context.Background(), ops, opts)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, opErr)
	assert.Contains(t, res.Err.Error(), "grouped operation 1 (pricing)")
}

func TestExecuteParallel_IndependentTransactions(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	opErr := errors.New("level full")
	ops := []Operation{
		{Name: "level-1", Fn: func(ctx context.Context, txn *Txn) (any, error) { return "L1", nil }},
		{Name: "level-2", Fn: func(ctx context.Context, txn *Txn) (any, error) { return nil, opErr }},
		{Name: "level-3", Fn: func(ctx context.Context, txn *Txn) (any, error) { return "L3", nil }},
	}

	opts := fastOptions()
	opts.EnableRetry = false

	results := mgr.ExecuteParallel(context.Background(), ops, opts)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Equal(t, "L1", results[0].Value)
	assert.False(t, results[1].Success)
	assert.ErrorIs(t, results[1].Err, opErr)
	assert.True(t, results[2].Success)
	assert.Equal(t, "L3", results[2].Value)

	// One transaction per operation; failures do not poison siblings.
	assert.Equal(t, 3, executor.begun())
}

func TestRunSequence_PropagatesStepError(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	stepErr := errors.New("session not found")
	err := mgr.RunSequence(context.Background(),
		tx.Operation{Name: "close session", Fn: func(ctx context.Context) error { return nil }},
		tx.Operation{Name: "free spot", Fn: func(ctx context.Context) error { return stepErr }},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, stepErr)
	assert.False(t, executor.lastTx().committed)
}

func TestRunSequence_CommitsWhenAllStepsSucceed(t *testing.T) {
	executor := &stubExecutor{}
	mgr := newTestManager(executor)

	var calls int
	err := mgr.RunSequence(context.Background(),
		tx.Operation{Name: "one", Fn: func(ctx context.Context) error { calls++; return nil }},
		tx.Operation{Name: "two", Fn: func(ctx context.Context) error { calls++; return nil }},
	)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, executor.lastTx().committed)
}
