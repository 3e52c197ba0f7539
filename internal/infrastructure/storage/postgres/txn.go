package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Txn is the transactional client handed to callbacks. It wraps the raw
// pgx transaction with the attempt's context and the savepoint protocol.
//
// A Txn is owned by exactly one callback invocation; it must not be used
// after the callback returns or from other goroutines.
type Txn struct {
	tx  pgx.Tx
	txc *TxContext
	mgr *Manager
}

// Context returns the attempt's transaction context.
func (t *Txn) Context() *TxContext {
	return t.txc
}

// Exec issues a statement inside the transaction.
func (t *Txn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.txc.recordOperation()
	return t.tx.Exec(ctx, sql, args...)
}

// Query runs a query inside the transaction.
func (t *Txn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.txc.recordOperation()
	return t.tx.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query inside the transaction.
func (t *Txn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	t.txc.recordOperation()
	return t.tx.QueryRow(ctx, sql, args...)
}

// CopyFrom performs a bulk insert using the COPY protocol.
func (t *Txn) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	t.txc.recordOperation()
	return t.tx.CopyFrom(ctx, table, columns, src)
}

// SendBatch executes queued queries in a single round-trip.
func (t *Txn) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	t.txc.recordOperation()
	return t.tx.SendBatch(ctx, b)
}

// CreateSavepoint creates a named checkpoint inside the transaction.
func (t *Txn) CreateSavepoint(ctx context.Context, label string) (*Savepoint, error) {
	return t.mgr.savepoints.Create(ctx, t, label)
}

// ReleaseSavepoint discards the savepoint, keeping its effects.
func (t *Txn) ReleaseSavepoint(ctx context.Context, spID string) error {
	return t.mgr.savepoints.Release(ctx, t, spID)
}

// RollbackToSavepoint undoes everything since the savepoint was created.
func (t *Txn) RollbackToSavepoint(ctx context.Context, spID string) error {
	return t.mgr.savepoints.RollbackTo(ctx, t, spID)
}
