// Package tx provides transaction management abstractions.
// This package defines interfaces that decouple domain logic from specific
// database implementations, following the Dependency Inversion Principle.
package tx

import (
	"context"
)

// Operation is one named step of a multi-step unit of work.
// The active transaction travels in ctx; repositories resolve it from there.
type Operation struct {
	// Name labels the step in logs and savepoint names.
	Name string

	// Fn performs the step. Returning an error aborts the whole unit of work.
	Fn func(ctx context.Context) error
}

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, savepoints, retry and
// timeout handling.
//
// Domain services depend on this interface, not concrete implementations.
// The actual implementation lives in infrastructure/storage/postgres.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunSequence executes the operations in order inside one transaction,
	// checkpointing each operation with a savepoint. A failing operation
	// aborts the whole sequence; nothing is committed.
	RunSequence(ctx context.Context, ops ...Operation) error
}
