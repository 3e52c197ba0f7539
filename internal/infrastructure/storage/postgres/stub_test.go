package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// stubTx is a scriptable pgx.Tx. Only the methods the manager and the
// savepoint controller touch are implemented; anything else panics through
// the embedded nil interface, which is exactly what a test should do when
// code reaches for an unscripted method.
type stubTx struct {
	pgx.Tx

	mu         sync.Mutex
	statements []string

	// execErr, when set, decides per statement whether Exec fails.
	execErr func(sql string) error

	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statements = append(t.statements, sql)
	if t.execErr != nil {
		if err := t.execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

func (t *stubTx) stmts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.statements))
	copy(out, t.statements)
	return out
}

// stubExecutor hands out stubTx instances and counts how many transactions
// were begun.
type stubExecutor struct {
	mu       sync.Mutex
	beginErr error
	txs      []*stubTx

	// configure, when set, customizes each new transaction.
	configure func(tx *stubTx)
}

func (e *stubExecutor) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.beginErr != nil {
		return nil, e.beginErr
	}
	tx := &stubTx{}
	if e.configure != nil {
		e.configure(tx)
	}
	e.txs = append(e.txs, tx)
	return tx, nil
}

func (e *stubExecutor) begun() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.txs)
}

func (e *stubExecutor) lastTx() *stubTx {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.txs) == 0 {
		return nil
	}
	return e.txs[len(e.txs)-1]
}

// newTestManager builds a manager over a stub executor with retries tuned
// for fast tests.
func newTestManager(executor *stubExecutor) *Manager {
	return NewManagerWithExecutor(executor, Config{})
}

// fastOptions returns retry-enabled options with millisecond backoff.
func fastOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.RetryBackoff = time.Millisecond
	opts.MaxWait = 0
	return opts
}
