package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parkwise/internal/core/id"
	"parkwise/pkg/logger"
)

// DefaultMaxSavepointDepth bounds savepoint nesting. Deep savepoint stacks
// are expensive on the engine side and almost always a callback bug.
const DefaultMaxSavepointDepth = 10

// SavepointController implements the savepoint protocol inside one open
// transaction: create, release (keep effects), rollback-to (undo effects).
//
// Invariant: a transaction's savepoint stack is append-only and owned by a
// single goroutine, and CreatedAt comes from the in-process monotonic
// clock, so creation order and timestamp order always agree. Rollback
// invalidation relies on this.
type SavepointController struct {
	maxDepth int
}

// NewSavepointController creates a controller with the given nesting limit.
// Non-positive limits fall back to DefaultMaxSavepointDepth.
func NewSavepointController(maxDepth int) *SavepointController {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSavepointDepth
	}
	return &SavepointController{maxDepth: maxDepth}
}

// Create issues a SAVEPOINT statement and pushes the record onto the
// transaction's stack. The depth guard runs before any statement reaches
// the executor.
func (s *SavepointController) Create(ctx context.Context, txn *Txn, label string) (*Savepoint, error) {
	txc := txn.Context()

	if txc.Depth+1 > s.maxDepth {
		return nil, &SavepointError{
			Reason: ReasonDepthExceeded,
			TxID:   txc.ID,
		}
	}

	sp := &Savepoint{
		ID:        id.NewString(),
		Name:      savepointName(txc, label),
		Depth:     txc.Depth + 1,
		CreatedAt: time.Now(),
	}

	if _, err := txn.tx.Exec(ctx, "SAVEPOINT "+sp.Name); err != nil {
		return nil, &SavepointError{
			Reason:      ReasonStatement,
			SavepointID: sp.ID,
			TxID:        txc.ID,
			Err:         err,
		}
	}

	txc.Savepoints = append(txc.Savepoints, sp)
	txc.Depth = sp.Depth
	txc.spCreated++

	logger.Debug(ctx, "savepoint created",
		"tx_id", txc.ID,
		"savepoint", sp.Name,
		"depth", sp.Depth,
	)
	return sp, nil
}

// Release discards the savepoint while keeping its effects. The effects
// only become durable when the outer transaction commits.
func (s *SavepointController) Release(ctx context.Context, txn *Txn, spID string) error {
	txc := txn.Context()

	sp, ok := txc.findSavepoint(spID)
	if !ok {
		return &SavepointError{Reason: ReasonNotFound, SavepointID: spID, TxID: txc.ID}
	}

	if _, err := txn.tx.Exec(ctx, "RELEASE SAVEPOINT "+sp.Name); err != nil {
		return &SavepointError{
			Reason:      ReasonStatement,
			SavepointID: sp.ID,
			TxID:        txc.ID,
			Err:         err,
		}
	}

	txc.Savepoints = removeSavepoint(txc.Savepoints, spID)
	txc.Depth = len(txc.Savepoints)

	logger.Debug(ctx, "savepoint released", "tx_id", txc.ID, "savepoint", sp.Name)
	return nil
}

// RollbackTo reverts the transaction to the savepoint. The target and every
// savepoint created after it are dropped from the stack; the ROLLBACK TO
// statement already undid their effects, so they are not released
// separately. Invalidation is decided by creation timestamp.
func (s *SavepointController) RollbackTo(ctx context.Context, txn *Txn, spID string) error {
	txc := txn.Context()

	sp, ok := txc.findSavepoint(spID)
	if !ok {
		return &SavepointError{Reason: ReasonNotFound, SavepointID: spID, TxID: txc.ID}
	}

	if _, err := txn.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp.Name); err != nil {
		return &SavepointError{
			Reason:      ReasonStatement,
			SavepointID: sp.ID,
			TxID:        txc.ID,
			Err:         err,
		}
	}

	kept := txc.Savepoints[:0]
	for _, candidate := range txc.Savepoints {
		if candidate.CreatedAt.Before(sp.CreatedAt) {
			kept = append(kept, candidate)
		}
	}
	txc.Savepoints = kept
	txc.Depth = len(txc.Savepoints)

	logger.Debug(ctx, "rolled back to savepoint",
		"tx_id", txc.ID,
		"savepoint", sp.Name,
		"remaining", len(txc.Savepoints),
	)
	return nil
}

func removeSavepoint(stack []*Savepoint, spID string) []*Savepoint {
	out := stack[:0]
	for _, sp := range stack {
		if sp.ID != spID {
			out = append(out, sp)
		}
	}
	return out
}

// savepointName derives a unique SQL identifier from the transaction id,
// the caller label and the per-transaction counter, so reused labels never
// collide.
func savepointName(txc *TxContext, label string) string {
	short := strings.ReplaceAll(txc.ID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("sp_%s_%d_%s", sanitizeIdent(label), txc.nextSavepointSeq(), short)
}

// sanitizeIdent keeps the label safe to splice into a SAVEPOINT statement.
func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "sp"
	}
	return b.String()
}
