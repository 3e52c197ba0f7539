package postgres

import (
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"parkwise/internal/core/id"
)

// TxStatus is the lifecycle state of one transaction attempt.
type TxStatus string

const (
	StatusPending   TxStatus = "PENDING"
	StatusActive    TxStatus = "ACTIVE"
	StatusCommitted TxStatus = "COMMITTED"
	StatusFailed    TxStatus = "FAILED"
)

// TxPriority is a caller-supplied hint carried into metrics and logs.
// The manager does not schedule by priority; the storage engine decides
// conflict victims on its own.
type TxPriority string

const (
	PriorityLow    TxPriority = "low"
	PriorityNormal TxPriority = "normal"
	PriorityHigh   TxPriority = "high"
)

// Savepoint is a named checkpoint inside an open transaction.
type Savepoint struct {
	// ID uniquely identifies the savepoint across the process.
	ID string

	// Name is the SQL identifier issued to the engine. It is derived from
	// the transaction id, the caller label and a per-transaction counter,
	// so reused labels still produce unique names.
	Name string

	// Depth is the nesting level at creation (parent depth + 1).
	Depth int

	// CreatedAt orders savepoints within one transaction. Rollback
	// invalidation is decided by this timestamp.
	CreatedAt time.Time
}

// TxContext describes one in-flight transaction attempt.
//
// A TxContext is exclusively owned by the attempt that created it and is
// never shared between goroutines. Only the registry and the metrics store
// are long-lived shared state.
type TxContext struct {
	ID             string
	Status         TxStatus
	Depth          int
	Savepoints     []*Savepoint
	IsolationLevel pgx.TxIsoLevel
	AccessMode     pgx.TxAccessMode
	Priority       TxPriority
	Metadata       map[string]any
	StartTime      time.Time
	EndTime        time.Time

	opCount      int
	spCreated    int
	savepointSeq int
}

// newTxContext builds the context for a fresh attempt. Every retry attempt
// gets a new context with a new id.
func newTxContext(opts TxOptions) *TxContext {
	return &TxContext{
		ID:             id.NewString(),
		Status:         StatusActive,
		IsolationLevel: opts.IsolationLevel,
		AccessMode:     opts.AccessMode,
		Priority:       opts.Priority,
		Metadata:       opts.Metadata,
		StartTime:      time.Now(),
	}
}

// nextSavepointSeq returns the per-transaction monotonically increasing
// savepoint counter.
func (c *TxContext) nextSavepointSeq() int {
	c.savepointSeq++
	return c.savepointSeq
}

// recordOperation counts one statement issued through the transaction.
func (c *TxContext) recordOperation() {
	c.opCount++
}

// OperationCount returns the number of statements issued so far.
func (c *TxContext) OperationCount() int {
	return c.opCount
}

// SavepointsCreated returns the number of savepoints created over the
// lifetime of the attempt, including already released ones.
func (c *TxContext) SavepointsCreated() int {
	return c.spCreated
}

// findSavepoint looks up an active savepoint by id.
func (c *TxContext) findSavepoint(spID string) (*Savepoint, bool) {
	for _, sp := range c.Savepoints {
		if sp.ID == spID {
			return sp, true
		}
	}
	return nil, false
}

// Snapshot returns a copy safe to hand to callers after the attempt ends.
func (c *TxContext) Snapshot() *TxContext {
	cp := *c
	cp.Savepoints = make([]*Savepoint, len(c.Savepoints))
	for i, sp := range c.Savepoints {
		spCopy := *sp
		cp.Savepoints[i] = &spCopy
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Duration returns the wall-clock time of the attempt, or elapsed time so
// far if it has not finished.
func (c *TxContext) Duration() time.Duration {
	if c.EndTime.IsZero() {
		return time.Since(c.StartTime)
	}
	return c.EndTime.Sub(c.StartTime)
}

// txRegistry is the active-transaction map. It is the only mutable state
// shared between concurrently executing transactions besides the metrics
// store, so it carries its own lock.
//
// The registry stores registration-time snapshots, never the live context:
// the live TxContext stays exclusively owned by its attempt, so listing
// active transactions cannot race with callback execution.
type txRegistry struct {
	mu sync.RWMutex
	m  map[string]*TxContext
}

func newTxRegistry() *txRegistry {
	return &txRegistry{m: make(map[string]*TxContext)}
}

func (r *txRegistry) add(txc *TxContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[txc.ID] = txc.Snapshot()
}

func (r *txRegistry) remove(txID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, txID)
}

func (r *txRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

func (r *txRegistry) list() []*TxContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TxContext, 0, len(r.m))
	for _, txc := range r.m {
		out = append(out, txc)
	}
	return out
}
