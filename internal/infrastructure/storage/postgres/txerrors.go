package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a transaction failure for the retry decision.
type Kind string

const (
	KindGeneric   Kind = "generic"
	KindTimeout   Kind = "timeout"
	KindDeadlock  Kind = "deadlock"
	KindSavepoint Kind = "savepoint"
)

// TxError wraps an underlying failure with its classification and the id
// of the transaction attempt it aborted.
type TxError struct {
	Kind    Kind
	TxID    string
	Message string
	Err     error
}

func (e *TxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction %s [%s]: %s: %v", e.TxID, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("transaction %s [%s]: %s", e.TxID, e.Kind, e.Message)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// NewTimeoutError reports a callback that exceeded its per-attempt budget.
func NewTimeoutError(txID string, timeout time.Duration) *TxError {
	return &TxError{
		Kind:    KindTimeout,
		TxID:    txID,
		Message: fmt.Sprintf("callback exceeded timeout of %s", timeout),
	}
}

// NewDeadlockError reports a serialization or deadlock conflict from the engine.
func NewDeadlockError(txID string, cause error) *TxError {
	return &TxError{
		Kind:    KindDeadlock,
		TxID:    txID,
		Message: "deadlock or serialization conflict",
		Err:     cause,
	}
}

// KindOf extracts the classification from an error chain.
// Unclassified errors report KindGeneric.
func KindOf(err error) Kind {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Kind
	}
	var spErr *SavepointError
	if errors.As(err, &spErr) {
		return KindSavepoint
	}
	return KindGeneric
}

// SavepointReason narrows a savepoint protocol violation.
type SavepointReason string

const (
	ReasonDepthExceeded SavepointReason = "depth_exceeded"
	ReasonNotFound      SavepointReason = "not_found"
	ReasonStatement     SavepointReason = "statement_failed"
)

// SavepointError reports a savepoint protocol violation. These indicate a
// programming error in the callback, never a transient storage condition,
// so they are always terminal.
type SavepointError struct {
	Reason      SavepointReason
	SavepointID string
	TxID        string
	Err         error
}

func (e *SavepointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("savepoint %s in transaction %s: %s: %v", e.SavepointID, e.TxID, e.Reason, e.Err)
	}
	return fmt.Sprintf("savepoint %s in transaction %s: %s", e.SavepointID, e.TxID, e.Reason)
}

func (e *SavepointError) Unwrap() error {
	return e.Err
}

// IsSavepointError extracts a SavepointError from an error chain.
func IsSavepointError(err error) (*SavepointError, bool) {
	var spErr *SavepointError
	if errors.As(err, &spErr) {
		return spErr, true
	}
	return nil, false
}

// ClassifyRule maps a raw executor error onto a Kind. The first registered
// rule that matches wins.
type ClassifyRule func(err error) (Kind, bool)

// Classifier turns raw executor errors into the typed taxonomy. Rules are
// explicit tagged-variant dispatch instead of ad hoc string matching, and
// callers may register additional rules.
type Classifier struct {
	rules []ClassifyRule
}

// NewClassifier creates a classifier with the default PostgreSQL rules:
// context deadline errors classify as timeouts, SQLSTATE 40001
// (serialization_failure) and 40P01 (deadlock_detected) as deadlocks, and
// 57014 (query_canceled, raised by statement_timeout) as timeouts.
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.Register(func(err error) (Kind, bool) {
		if errors.Is(err, context.DeadlineExceeded) {
			return KindTimeout, true
		}
		return "", false
	})
	c.Register(func(err error) (Kind, bool) {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return "", false
		}
		switch pgErr.Code {
		case "40001", "40P01":
			return KindDeadlock, true
		case "57014":
			return KindTimeout, true
		}
		return "", false
	})
	return c
}

// Register appends a rule. Rules registered later run after the defaults.
func (c *Classifier) Register(rule ClassifyRule) {
	c.rules = append(c.rules, rule)
}

// Classify wraps err into the typed taxonomy for the given transaction.
// Already-classified errors pass through unchanged.
func (c *Classifier) Classify(txID string, err error) error {
	if err == nil {
		return nil
	}

	var txErr *TxError
	if errors.As(err, &txErr) {
		return err
	}
	if spErr, ok := IsSavepointError(err); ok {
		return &TxError{
			Kind:    KindSavepoint,
			TxID:    txID,
			Message: fmt.Sprintf("savepoint protocol violation (%s)", spErr.Reason),
			Err:     err,
		}
	}

	for _, rule := range c.rules {
		kind, ok := rule(err)
		if !ok {
			continue
		}
		switch kind {
		case KindTimeout:
			return &TxError{Kind: KindTimeout, TxID: txID, Message: "attempt timed out", Err: err}
		case KindDeadlock:
			return NewDeadlockError(txID, err)
		default:
			return &TxError{Kind: kind, TxID: txID, Message: "transaction failed", Err: err}
		}
	}

	return &TxError{Kind: KindGeneric, TxID: txID, Message: "transaction failed", Err: err}
}

// RetryPolicy decides whether a classified error is worth another attempt.
type RetryPolicy func(err error) bool

// DefaultRetryPolicy retries timeouts and deadlocks. Savepoint protocol
// violations and generic failures are terminal.
func DefaultRetryPolicy(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindDeadlock:
		return true
	}
	return false
}
