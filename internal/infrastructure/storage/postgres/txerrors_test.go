package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Defaults(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindTimeout},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, KindDeadlock},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, KindDeadlock},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, KindTimeout},
		{"unique violation", &pgconn.PgError{Code: "23505"}, KindGeneric},
		{"plain error", errors.New("connection reset"), KindGeneric},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := c.Classify("tx-1", tc.err)
			assert.Equal(t, tc.want, KindOf(classified))
			assert.ErrorIs(t, classified, tc.err)
		})
	}
}

func TestClassifier_NilPassesThrough(t *testing.T) {
	c := NewClassifier()
	assert.NoError(t, c.Classify("tx-1", nil))
}

func TestClassifier_AlreadyClassifiedPassesThrough(t *testing.T) {
	c := NewClassifier()

	original := NewTimeoutError("tx-1", 0)
	classified := c.Classify("tx-2", fmt.Errorf("attempt: %w", original))

	var txErr *TxError
	require.ErrorAs(t, classified, &txErr)
	assert.Equal(t, "tx-1", txErr.TxID)
	assert.Equal(t, KindTimeout, txErr.Kind)
}

func TestClassifier_SavepointErrorsAlwaysSavepointKind(t *testing.T) {
	c := NewClassifier()

	spErr := &SavepointError{Reason: ReasonDepthExceeded, TxID: "tx-1"}
	classified := c.Classify("tx-1", spErr)

	assert.Equal(t, KindSavepoint, KindOf(classified))
	got, ok := IsSavepointError(classified)
	require.True(t, ok)
	assert.Equal(t, ReasonDepthExceeded, got.Reason)
}

func TestClassifier_CustomRule(t *testing.T) {
	c := NewClassifier()
	c.Register(func(err error) (Kind, bool) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
			return KindTimeout, true
		}
		return "", false
	})

	classified := c.Classify("tx-1", &pgconn.PgError{Code: "55P03", Message: "lock not available"})
	assert.Equal(t, KindTimeout, KindOf(classified))
}

func TestRuleFromExpression(t *testing.T) {
	t.Run("matches by code", func(t *testing.T) {
		rule, err := RuleFromExpression(`code == "55P03"`, KindTimeout)
		require.NoError(t, err)

		kind, ok := rule(&pgconn.PgError{Code: "55P03"})
		require.True(t, ok)
		assert.Equal(t, KindTimeout, kind)

		_, ok = rule(&pgconn.PgError{Code: "23505"})
		assert.False(t, ok)
	})

	t.Run("matches by message", func(t *testing.T) {
		rule, err := RuleFromExpression(`message.contains("lock timeout")`, KindTimeout)
		require.NoError(t, err)

		kind, ok := rule(errors.New("canceling statement due to lock timeout"))
		require.True(t, ok)
		assert.Equal(t, KindTimeout, kind)

		_, ok = rule(errors.New("something else"))
		assert.False(t, ok)
	})

	t.Run("rejects malformed expression", func(t *testing.T) {
		_, err := RuleFromExpression(`code == `, KindTimeout)
		assert.Error(t, err)
	})

	t.Run("rejects non-bool expression", func(t *testing.T) {
		_, err := RuleFromExpression(`code + message`, KindTimeout)
		assert.Error(t, err)
	})

	t.Run("wired into the classifier", func(t *testing.T) {
		rule, err := RuleFromExpression(`code == "53300"`, KindTimeout)
		require.NoError(t, err)

		c := NewClassifier()
		c.Register(rule)

		classified := c.Classify("tx-1", &pgconn.PgError{Code: "53300", Message: "too many connections"})
		assert.Equal(t, KindTimeout, KindOf(classified))
	})
}

func TestDefaultRetryPolicy(t *testing.T) {
	assert.True(t, DefaultRetryPolicy(&TxError{Kind: KindTimeout}))
	assert.True(t, DefaultRetryPolicy(&TxError{Kind: KindDeadlock}))
	assert.False(t, DefaultRetryPolicy(&TxError{Kind: KindGeneric}))
	assert.False(t, DefaultRetryPolicy(&TxError{Kind: KindSavepoint}))
	assert.False(t, DefaultRetryPolicy(&SavepointError{Reason: ReasonNotFound}))
	assert.False(t, DefaultRetryPolicy(errors.New("unclassified")))
}

func TestTxErrorFormatting(t *testing.T) {
	withCause := NewDeadlockError("tx-9", errors.New("deadlock detected"))
	assert.Contains(t, withCause.Error(), "tx-9")
	assert.Contains(t, withCause.Error(), "deadlock detected")

	withoutCause := NewTimeoutError("tx-9", 0)
	assert.Contains(t, withoutCause.Error(), "timeout")
	assert.NoError(t, withoutCause.Unwrap())
}
