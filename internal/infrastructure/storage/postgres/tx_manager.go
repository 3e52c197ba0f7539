package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parkwise/internal/core/tx"
	"parkwise/pkg/logger"
)

var tracer = otel.Tracer("parkwise/tx")

// Compile-time check that Manager implements tx.Manager interface.
var _ tx.Manager = (*Manager)(nil)

// Executor is the storage engine's transaction primitive. The manager
// treats it as an opaque dependency; *pgxpool.Pool satisfies it.
type Executor interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxOptions configures one managed transaction.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted.
	// Empty means the engine default.
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// MaxWait bounds how long to wait for a pooled connection before
	// giving up. Zero waits as long as the caller's context allows.
	MaxWait time.Duration

	// Timeout is the wall-clock budget for the callback, per attempt.
	// Zero disables the per-attempt deadline.
	Timeout time.Duration

	// EnableRetry re-runs the callback on transient failures.
	EnableRetry bool

	// MaxRetries caps the total number of attempts when EnableRetry is set.
	MaxRetries int

	// RetryBackoff is the base delay between attempts; it doubles per retry.
	RetryBackoff time.Duration

	// Priority and Metadata are opaque, carried into the transaction
	// context for observability only.
	Priority TxPriority
	Metadata map[string]any
}

// DefaultTxOptions returns production-safe defaults.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: pgx.ReadCommitted,
		AccessMode:     pgx.ReadWrite,
		MaxWait:        5 * time.Second,
		Timeout:        30 * time.Second,
		EnableRetry:    true,
		MaxRetries:     3,
		RetryBackoff:   100 * time.Millisecond,
		Priority:       PriorityNormal,
	}
}

// SerializableTxOptions for critical operations requiring serializable isolation.
func SerializableTxOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.IsolationLevel = pgx.Serializable
	return opts
}

// Validate rejects option values the manager cannot honor. Validation
// failures are the only errors Execute returns directly; everything that
// happens after the first attempt starts is folded into the result.
func (o TxOptions) Validate() error {
	if o.Timeout < 0 {
		return fmt.Errorf("invalid tx options: negative timeout %s", o.Timeout)
	}
	if o.MaxWait < 0 {
		return fmt.Errorf("invalid tx options: negative max wait %s", o.MaxWait)
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("invalid tx options: negative max retries %d", o.MaxRetries)
	}
	if o.RetryBackoff < 0 {
		return fmt.Errorf("invalid tx options: negative retry backoff %s", o.RetryBackoff)
	}
	switch o.IsolationLevel {
	case "", pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted, pgx.ReadUncommitted:
	default:
		return fmt.Errorf("invalid tx options: unknown isolation level %q", o.IsolationLevel)
	}
	switch o.AccessMode {
	case "", pgx.ReadWrite, pgx.ReadOnly:
	default:
		return fmt.Errorf("invalid tx options: unknown access mode %q", o.AccessMode)
	}
	return nil
}

func (o TxOptions) withDefaults() TxOptions {
	if o.EnableRetry && o.MaxRetries == 0 {
		o.MaxRetries = DefaultTxOptions().MaxRetries
	}
	if o.EnableRetry && o.RetryBackoff == 0 {
		o.RetryBackoff = DefaultTxOptions().RetryBackoff
	}
	return o
}

// TxFunc is the unit of work run inside a managed transaction. It may issue
// statements and drive the savepoint protocol through txn.
type TxFunc func(ctx context.Context, txn *Txn) (any, error)

// TxResult is the structured outcome of a managed transaction. Business
// failures come back here; callers check Success instead of catching errors.
type TxResult struct {
	// Success reports whether the transaction committed.
	Success bool

	// Value is the callback's return value; set only on success.
	Value any

	// Err is the classified failure; set only when Success is false.
	Err error

	// Context is the final snapshot of the last attempt's context.
	Context *TxContext

	// RetryCount is the number of attempts made (>= 1).
	RetryCount int

	// TotalDuration spans from the first attempt start to the final outcome.
	TotalDuration time.Duration
}

// Config tunes a Manager. Zero values select defaults.
type Config struct {
	// MaxSavepointDepth bounds savepoint nesting per transaction.
	MaxSavepointDepth int

	// Classifier maps raw executor errors onto the typed taxonomy.
	Classifier *Classifier

	// RetryPolicy decides which classified errors get another attempt.
	RetryPolicy RetryPolicy

	// MetricsRegisterer receives the Prometheus collectors. Nil keeps the
	// collectors on a private registry (useful in tests).
	MetricsRegisterer prometheus.Registerer
}

// Manager orchestrates transactions over the executor: retry with backoff,
// nested savepoint checkpointing, per-attempt timeouts, deadlock
// classification and per-transaction metrics.
//
// Construct one Manager at the composition root and inject it; there is no
// process-wide instance.
type Manager struct {
	executor   Executor
	classifier *Classifier
	retryable  RetryPolicy
	savepoints *SavepointController
	registry   *txRegistry
	metrics    *MetricsStore
	fallback   Querier
}

// NewManager creates a transaction manager backed by a connection pool.
func NewManager(pool *Pool, cfg Config) *Manager {
	m := NewManagerWithExecutor(pool.Pool, cfg)
	m.fallback = pool.Pool
	return m
}

// NewManagerWithExecutor creates a manager over any transaction executor.
// Used by tests to substitute a stub engine.
func NewManagerWithExecutor(executor Executor, cfg Config) *Manager {
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier()
	}
	if cfg.RetryPolicy == nil {
		cfg.RetryPolicy = DefaultRetryPolicy
	}
	return &Manager{
		executor:   executor,
		classifier: cfg.Classifier,
		retryable:  cfg.RetryPolicy,
		savepoints: NewSavepointController(cfg.MaxSavepointDepth),
		registry:   newTxRegistry(),
		metrics:    NewMetricsStore(cfg.MetricsRegisterer),
	}
}

// txnKey is the context key for the active transaction.
type txnKey struct{}

func withTxn(ctx context.Context, txn *Txn) context.Context {
	return context.WithValue(ctx, txnKey{}, txn)
}

// GetTxn returns the current transaction from context, or nil if none.
func (m *Manager) GetTxn(ctx context.Context) *Txn {
	if txn, ok := ctx.Value(txnKey{}).(*Txn); ok {
		return txn
	}
	return nil
}

// Querier is the statement surface repositories work against, inside or
// outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction from context if present, otherwise the
// pool. This lets repositories work both inside and outside transactions.
func (m *Manager) GetQuerier(ctx context.Context) Querier {
	if txn := m.GetTxn(ctx); txn != nil {
		return txn
	}
	return m.fallback
}

// Execute runs fn inside a managed transaction and returns its structured
// result. Only option-validation failures are returned as an error; every
// failure after the first attempt starts comes back inside the TxResult.
func (m *Manager) Execute(ctx context.Context, fn TxFunc, opts TxOptions) (*TxResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	attempts := 1
	if opts.EnableRetry {
		attempts = opts.MaxRetries
	}

	start := time.Now()
	var res *TxResult
	for attempt := 1; attempt <= attempts; attempt++ {
		res = m.runAttempt(ctx, fn, opts, attempt)
		res.RetryCount = attempt
		res.TotalDuration = time.Since(start)

		if res.Success {
			logger.Info(ctx, "transaction committed",
				"tx_id", res.Context.ID,
				"status", res.Context.Status,
				"retries", res.RetryCount,
				"duration_ms", res.TotalDuration.Milliseconds(),
				"operations", res.Context.OperationCount(),
			)
			return res, nil
		}

		if attempt == attempts || !m.retryable(res.Err) {
			break
		}

		backoff := opts.RetryBackoff << (attempt - 1)
		logger.Warn(ctx, "transaction attempt failed, retrying",
			"tx_id", res.Context.ID,
			"attempt", attempt,
			"error", res.Err,
			"backoff_ms", backoff.Milliseconds(),
		)
		m.metrics.noteRetry()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			res.Err = m.classifier.Classify(res.Context.ID, fmt.Errorf("wait for retry: %w", ctx.Err()))
			res.TotalDuration = time.Since(start)
			return res, nil
		}
	}

	logger.Error(ctx, "transaction failed",
		"tx_id", res.Context.ID,
		"status", res.Context.Status,
		"retries", res.RetryCount,
		"duration_ms", res.TotalDuration.Milliseconds(),
		"error", res.Err,
	)
	return res, nil
}

// runAttempt performs a single attempt: fresh context and id, registration,
// begin, callback under the timeout race, commit or rollback.
func (m *Manager) runAttempt(ctx context.Context, fn TxFunc, opts TxOptions, attempt int) *TxResult {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
			attribute.Int("tx.attempt", attempt),
		))
	defer span.End()

	txc := newTxContext(opts)
	m.registry.add(txc)
	m.metrics.begin(txc)
	defer m.registry.remove(txc.ID)

	beginCtx := ctx
	if opts.MaxWait > 0 {
		var cancel context.CancelFunc
		beginCtx, cancel = context.WithTimeout(ctx, opts.MaxWait)
		defer cancel()
	}
	pgxTx, err := m.executor.BeginTx(beginCtx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		return m.finishFailed(ctx, txc, attempt, fmt.Errorf("begin transaction: %w", err))
	}

	txn := &Txn{tx: pgxTx, txc: txc, mgr: m}

	value, err := m.runCallback(ctx, txn, fn, opts.Timeout)
	if err != nil {
		// Background context so the rollback completes even when the
		// attempt's context is already cancelled.
		if rbErr := pgxTx.Rollback(context.Background()); rbErr != nil && rbErr != pgx.ErrTxClosed {
			logger.Error(ctx, "rollback failed", "tx_id", txc.ID, "error", rbErr, "original_error", err)
		}
		return m.finishFailed(ctx, txc, attempt, err)
	}

	if err := pgxTx.Commit(ctx); err != nil {
		if rbErr := pgxTx.Rollback(context.Background()); rbErr != nil && rbErr != pgx.ErrTxClosed {
			logger.Error(ctx, "rollback after failed commit", "tx_id", txc.ID, "error", rbErr)
		}
		return m.finishFailed(ctx, txc, attempt, fmt.Errorf("commit transaction: %w", err))
	}

	txc.Status = StatusCommitted
	txc.EndTime = time.Now()
	m.metrics.finish(txc, attempt)
	span.SetAttributes(attribute.String("tx.status", string(StatusCommitted)))

	return &TxResult{
		Success: true,
		Value:   value,
		Context: txc.Snapshot(),
	}
}

// runCallback races the callback against the per-attempt timeout. When the
// timer fires the attempt context is cancelled and the callback's pending
// work is abandoned; the caller rolls the open transaction back.
func (m *Manager) runCallback(ctx context.Context, txn *Txn, fn TxFunc, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		return fn(withTxn(ctx, txn), txn)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(withTxn(cctx, txn), txn)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-cctx.Done():
		if ctx.Err() == nil && cctx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError(txn.txc.ID, timeout)
		}
		return nil, fmt.Errorf("transaction callback: %w", cctx.Err())
	}
}

func (m *Manager) finishFailed(ctx context.Context, txc *TxContext, attempt int, err error) *TxResult {
	classified := m.classifier.Classify(txc.ID, err)
	txc.Status = StatusFailed
	txc.EndTime = time.Now()
	m.metrics.finish(txc, attempt)

	return &TxResult{
		Success: false,
		Err:     classified,
		Context: txc.Snapshot(),
	}
}

// --- Savepoint protocol, exposed on the manager for collaborators that
// hold a Txn indirectly ---

// CreateSavepoint creates a named checkpoint in the given transaction.
func (m *Manager) CreateSavepoint(ctx context.Context, txn *Txn, label string) (*Savepoint, error) {
	return m.savepoints.Create(ctx, txn, label)
}

// ReleaseSavepoint discards a checkpoint, keeping its effects.
func (m *Manager) ReleaseSavepoint(ctx context.Context, txn *Txn, spID string) error {
	return m.savepoints.Release(ctx, txn, spID)
}

// RollbackToSavepoint reverts the transaction to a checkpoint.
func (m *Manager) RollbackToSavepoint(ctx context.Context, txn *Txn, spID string) error {
	return m.savepoints.RollbackTo(ctx, txn, spID)
}

// --- tx.Manager implementation for domain services ---

// RunInTransaction executes fn within a managed transaction using default
// options. If a transaction already exists in ctx it is reused.
func (m *Manager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.GetTxn(ctx) != nil {
		return fn(ctx)
	}

	res, err := m.Execute(ctx, func(ctx context.Context, _ *Txn) (any, error) {
		return nil, fn(ctx)
	}, DefaultTxOptions())
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	return nil
}

// ReadOnly executes fn in a read-only transaction.
func (m *Manager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := DefaultTxOptions()
	opts.AccessMode = pgx.ReadOnly

	res, err := m.Execute(ctx, func(ctx context.Context, _ *Txn) (any, error) {
		return nil, fn(ctx)
	}, opts)
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	return nil
}

// --- Observability surface ---

// GetActiveTransactions lists currently registered transaction contexts.
func (m *Manager) GetActiveTransactions() []*TxContext {
	return m.registry.list()
}

// GetTransactionMetrics returns the stored metrics snapshot for one
// transaction id.
func (m *Manager) GetTransactionMetrics(txID string) (*TxMetrics, bool) {
	return m.metrics.Get(txID)
}

// GetAllTransactionMetrics returns every stored metrics snapshot.
func (m *Manager) GetAllTransactionMetrics() []*TxMetrics {
	return m.metrics.All()
}

// GetTransactionStatistics aggregates registry and metrics store state.
func (m *Manager) GetTransactionStatistics() TxStatistics {
	return m.metrics.statistics(m.registry.size())
}

// ClearOldMetrics prunes metrics whose transaction started before the
// cutoff. Housekeeping only; active transactions are untouched.
func (m *Manager) ClearOldMetrics(olderThan time.Duration) int {
	return m.metrics.ClearOlderThan(time.Now().Add(-olderThan))
}
