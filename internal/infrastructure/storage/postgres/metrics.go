package postgres

import (
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TxMetrics is the per-transaction observability record. One entry exists
// per transaction id, created at attempt start and finalized at attempt
// end, retained until pruned by age.
type TxMetrics struct {
	TransactionID  string           `json:"transactionId"`
	Status         TxStatus         `json:"status"`
	IsolationLevel pgx.TxIsoLevel   `json:"isolationLevel,omitempty"`
	Priority       TxPriority       `json:"priority,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	StartTime      time.Time        `json:"startTime"`
	EndTime        time.Time        `json:"endTime,omitzero"`
	Duration       time.Duration    `json:"durationMs"`
	OperationCount int              `json:"operationCount"`
	SavepointCount int              `json:"savepointCount"`
	RetryCount     int              `json:"retryCount"`
}

// TxStatistics aggregates the registry and the metrics store.
type TxStatistics struct {
	ActiveCount     int           `json:"activeCount"`
	CompletedCount  int           `json:"completedCount"`
	CommittedCount  int           `json:"committedCount"`
	FailedCount     int           `json:"failedCount"`
	AverageDuration time.Duration `json:"averageDurationMs"`
}

// MetricsStore keeps per-transaction metrics in memory, keyed by
// transaction id, and mirrors the aggregates into Prometheus collectors.
// It is shared by all concurrent transactions and carries its own lock.
type MetricsStore struct {
	mu      sync.RWMutex
	entries map[string]*TxMetrics

	active   prometheus.Gauge
	total    *prometheus.CounterVec
	duration prometheus.Histogram
	retries  prometheus.Counter
}

// NewMetricsStore creates a store registering its collectors with reg.
// A nil registerer keeps the collectors on a private registry.
func NewMetricsStore(reg prometheus.Registerer) *MetricsStore {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &MetricsStore{
		entries: make(map[string]*TxMetrics),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parkwise_tx_active",
			Help: "Number of currently executing transactions.",
		}),
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parkwise_tx_total",
			Help: "Finished transactions by final status.",
		}, []string{"status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parkwise_tx_duration_seconds",
			Help:    "Wall-clock duration of finished transactions.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "parkwise_tx_retries_total",
			Help: "Retry attempts across all transactions.",
		}),
	}
}

// begin creates the metrics entry for a starting attempt.
func (s *MetricsStore) begin(txc *TxContext) {
	s.mu.Lock()
	s.entries[txc.ID] = &TxMetrics{
		TransactionID:  txc.ID,
		Status:         txc.Status,
		IsolationLevel: txc.IsolationLevel,
		Priority:       txc.Priority,
		Metadata:       txc.Metadata,
		StartTime:      txc.StartTime,
		RetryCount:     1,
	}
	s.mu.Unlock()

	s.active.Inc()
}

// finish finalizes the entry when the attempt ends, whatever the outcome.
func (s *MetricsStore) finish(txc *TxContext, retryCount int) {
	s.mu.Lock()
	if entry, ok := s.entries[txc.ID]; ok {
		entry.Status = txc.Status
		entry.EndTime = txc.EndTime
		entry.Duration = txc.Duration()
		entry.OperationCount = txc.OperationCount()
		entry.SavepointCount = txc.SavepointsCreated()
		entry.RetryCount = retryCount
	}
	s.mu.Unlock()

	s.active.Dec()
	s.total.WithLabelValues(strings.ToLower(string(txc.Status))).Inc()
	s.duration.Observe(txc.Duration().Seconds())
}

// noteRetry counts one retry wait.
func (s *MetricsStore) noteRetry() {
	s.retries.Inc()
}

// Get returns a copy of the metrics entry for the transaction id.
func (s *MetricsStore) Get(txID string) (*TxMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[txID]
	if !ok {
		return nil, false
	}
	cp := *entry
	return &cp, true
}

// All returns copies of every stored entry.
func (s *MetricsStore) All() []*TxMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TxMetrics, 0, len(s.entries))
	for _, entry := range s.entries {
		cp := *entry
		out = append(out, &cp)
	}
	return out
}

// statistics aggregates the store. activeCount comes from the registry,
// which is the authority on in-flight transactions.
func (s *MetricsStore) statistics(activeCount int) TxStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := TxStatistics{
		ActiveCount:    activeCount,
		CompletedCount: len(s.entries),
	}

	var total time.Duration
	var finished int
	for _, entry := range s.entries {
		switch entry.Status {
		case StatusCommitted:
			stats.CommittedCount++
		case StatusFailed:
			stats.FailedCount++
		}
		if !entry.EndTime.IsZero() {
			total += entry.Duration
			finished++
		}
	}
	if finished > 0 {
		stats.AverageDuration = total / time.Duration(finished)
	}
	return stats
}

// ClearOlderThan deletes entries whose transaction started before the
// cutoff and reports how many were removed.
func (s *MetricsStore) ClearOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for txID, entry := range s.entries {
		if entry.StartTime.Before(cutoff) {
			delete(s.entries, txID)
			removed++
		}
	}
	return removed
}
