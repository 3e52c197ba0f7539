package postgres

import (
	"context"
	"fmt"
	"sync"

	"parkwise/internal/core/tx"
	"parkwise/pkg/logger"
)

// Operation is one named step of a composite unit of work.
type Operation struct {
	Name string
	Fn   func(ctx context.Context, txn *Txn) (any, error)
}

// ExecuteSequence runs the operations in order inside one managed
// transaction. Each operation is checkpointed with its own savepoint:
// success releases the savepoint and continues, failure rolls back to it
// and aborts the whole batch. Per-operation checkpointing, all-or-nothing
// commit; when operation k fails, operations 1..k-1 never become visible
// because the outer transaction never commits.
func (m *Manager) ExecuteSequence(ctx context.Context, ops []Operation, opts TxOptions) (*TxResult, error) {
	return m.Execute(ctx, func(ctx context.Context, txn *Txn) (any, error) {
		results := make([]any, 0, len(ops))
		for i, op := range ops {
			sp, err := txn.CreateSavepoint(ctx, fmt.Sprintf("op%d_%s", i, op.Name))
			if err != nil {
				return nil, err
			}

			value, err := op.Fn(ctx, txn)
			if err != nil {
				if rbErr := txn.RollbackToSavepoint(ctx, sp.ID); rbErr != nil {
					logger.Error(ctx, "rollback to operation savepoint failed",
						"tx_id", txn.Context().ID,
						"operation", op.Name,
						"error", rbErr,
					)
				}
				return nil, fmt.Errorf("operation %d (%s): %w", i, op.Name, err)
			}

			if err := txn.ReleaseSavepoint(ctx, sp.ID); err != nil {
				return nil, err
			}
			results = append(results, value)
		}
		return results, nil
	}, opts)
}

// ExecuteGrouped runs the operations as one labeled group inside one
// managed transaction. Despite historically being called "parallel", the
// operations run strictly sequentially: they share the transaction's single
// connection, and one connection processes one statement at a time. Use
// ExecuteParallel for real concurrency.
func (m *Manager) ExecuteGrouped(ctx context.Context, ops []Operation, opts TxOptions) (*TxResult, error) {
	if opts.Metadata == nil {
		opts.Metadata = make(map[string]any, 1)
	}
	opts.Metadata["execution_mode"] = "grouped"

	return m.Execute(ctx, func(ctx context.Context, txn *Txn) (any, error) {
		results := make([]any, 0, len(ops))
		for i, op := range ops {
			value, err := op.Fn(ctx, txn)
			if err != nil {
				return nil, fmt.Errorf("grouped operation %d (%s): %w", i, op.Name, err)
			}
			results = append(results, value)
		}
		return results, nil
	}, opts)
}

// ExecuteParallel runs every operation in its own top-level transaction on
// its own pooled connection, concurrently. This is the only supported way
// to run operations in parallel; transactions are isolated from each other
// per the configured isolation level and commit or fail independently.
func (m *Manager) ExecuteParallel(ctx context.Context, ops []Operation, opts TxOptions) []*TxResult {
	results := make([]*TxResult, len(ops))

	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func(i int, op Operation) {
			defer wg.Done()
			res, err := m.Execute(ctx, func(ctx context.Context, txn *Txn) (any, error) {
				return op.Fn(ctx, txn)
			}, opts)
			if err != nil {
				res = &TxResult{Success: false, Err: err, RetryCount: 0}
			}
			results[i] = res
		}(i, op)
	}
	wg.Wait()

	return results
}

// RunSequence implements tx.Manager for domain services: each operation is
// savepoint-checkpointed, the batch commits or rolls back as a whole.
func (m *Manager) RunSequence(ctx context.Context, ops ...tx.Operation) error {
	wrapped := make([]Operation, len(ops))
	for i, op := range ops {
		fn := op.Fn
		wrapped[i] = Operation{
			Name: op.Name,
			Fn: func(ctx context.Context, _ *Txn) (any, error) {
				return nil, fn(ctx)
			},
		}
	}

	res, err := m.ExecuteSequence(ctx, wrapped, DefaultTxOptions())
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	return nil
}
