package dto

import (
	"time"

	"parkwise/internal/infrastructure/storage/postgres"
)

// ActiveTransactionResponse describes one in-flight transaction.
type ActiveTransactionResponse struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	Depth           int            `json:"depth"`
	IsolationLevel  string         `json:"isolationLevel,omitempty"`
	Priority        string         `json:"priority,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	StartTime       time.Time      `json:"startTime"`
	OperationCount  int            `json:"operationCount"`
	SavepointsCount int            `json:"savepointsCount"`
}

// FromTxContext creates response DTO from a transaction context snapshot.
func FromTxContext(txc *postgres.TxContext) *ActiveTransactionResponse {
	return &ActiveTransactionResponse{
		ID:              txc.ID,
		Status:          string(txc.Status),
		Depth:           txc.Depth,
		IsolationLevel:  string(txc.IsolationLevel),
		Priority:        string(txc.Priority),
		Metadata:        txc.Metadata,
		StartTime:       txc.StartTime,
		OperationCount:  txc.OperationCount(),
		SavepointsCount: len(txc.Savepoints),
	}
}

// TxMetricsResponse describes stored metrics for one transaction.
type TxMetricsResponse struct {
	TransactionID  string         `json:"transactionId"`
	Status         string         `json:"status"`
	IsolationLevel string         `json:"isolationLevel,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	DurationMs     int64          `json:"durationMs"`
	OperationCount int            `json:"operationCount"`
	SavepointCount int            `json:"savepointCount"`
	RetryCount     int            `json:"retryCount"`
}

// FromTxMetrics creates response DTO from a metrics snapshot.
func FromTxMetrics(m *postgres.TxMetrics) *TxMetricsResponse {
	resp := &TxMetricsResponse{
		TransactionID:  m.TransactionID,
		Status:         string(m.Status),
		IsolationLevel: string(m.IsolationLevel),
		Priority:       string(m.Priority),
		Metadata:       m.Metadata,
		StartTime:      m.StartTime,
		DurationMs:     m.Duration.Milliseconds(),
		OperationCount: m.OperationCount,
		SavepointCount: m.SavepointCount,
		RetryCount:     m.RetryCount,
	}
	if !m.EndTime.IsZero() {
		end := m.EndTime
		resp.EndTime = &end
	}
	return resp
}

// TxStatisticsResponse aggregates transaction outcomes.
type TxStatisticsResponse struct {
	ActiveCount       int   `json:"activeCount"`
	CompletedCount    int   `json:"completedCount"`
	CommittedCount    int   `json:"committedCount"`
	FailedCount       int   `json:"failedCount"`
	AverageDurationMs int64 `json:"averageDurationMs"`
}

// FromTxStatistics creates response DTO from aggregated statistics.
func FromTxStatistics(s postgres.TxStatistics) *TxStatisticsResponse {
	return &TxStatisticsResponse{
		ActiveCount:       s.ActiveCount,
		CompletedCount:    s.CompletedCount,
		CommittedCount:    s.CommittedCount,
		FailedCount:       s.FailedCount,
		AverageDurationMs: s.AverageDuration.Milliseconds(),
	}
}

// ClearMetricsResponse reports pruned metrics entries.
type ClearMetricsResponse struct {
	Removed int `json:"removed"`
}
