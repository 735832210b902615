// Package metrics provides interfaces and implementations for recording the
// outcome of transaction flows.
//
// Flows report counters (attempts, simulation failures, sends, confirmations)
// and a duration histogram through the Metrics interface. The LogMetrics
// implementation keeps running totals in memory and reports them through slog.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// Metrics defines the interface for collecting flow metrics.
type Metrics interface {
	// Initialize prepares the metrics system for data collection.
	Initialize(ctx context.Context) error

	// Flush reports any buffered metrics data.
	Flush(ctx context.Context) error

	// Shutdown releases resources held by the metrics system.
	Shutdown(ctx context.Context) error

	// UpdateGauge sets a gauge metric to the specified value.
	UpdateGauge(ctx context.Context, name string, value float64) error

	// IncrementCounter increments a counter metric by the specified value.
	IncrementCounter(ctx context.Context, name string, value uint64) error

	// RecordHistogram records a value in a histogram metric.
	RecordHistogram(ctx context.Context, name string, value float64) error
}

// Collection fans every call out to several Metrics implementations. A
// failing implementation does not stop the others; errors are joined.
type Collection struct {
	metrics []Metrics
	mu      sync.RWMutex
}

// NewCollection creates a new Collection with the given metrics implementations.
func NewCollection(metrics ...Metrics) *Collection {
	return &Collection{
		metrics: metrics,
	}
}

// Add adds a new Metrics implementation to the collection.
func (c *Collection) Add(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, m)
}

// Len returns the number of metrics implementations in the collection.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metrics)
}

func (c *Collection) each(fn func(Metrics) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	for _, m := range c.metrics {
		if err := fn(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collection) Initialize(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Initialize(ctx) })
}

func (c *Collection) Flush(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Flush(ctx) })
}

func (c *Collection) Shutdown(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Shutdown(ctx) })
}

func (c *Collection) UpdateGauge(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.UpdateGauge(ctx, name, value) })
}

func (c *Collection) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return c.each(func(m Metrics) error { return m.IncrementCounter(ctx, name, value) })
}

func (c *Collection) RecordHistogram(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.RecordHistogram(ctx, name, value) })
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

// NewNoopMetrics creates a new NoopMetrics.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Initialize(ctx context.Context) error                              { return nil }
func (n *NoopMetrics) Flush(ctx context.Context) error                                   { return nil }
func (n *NoopMetrics) Shutdown(ctx context.Context) error                                { return nil }
func (n *NoopMetrics) UpdateGauge(ctx context.Context, name string, value float64) error { return nil }
func (n *NoopMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return nil
}
func (n *NoopMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	return nil
}

// HistogramSummary aggregates the values recorded for one histogram.
type HistogramSummary struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Mean returns the average recorded value.
func (h HistogramSummary) Mean() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// Snapshot is a point-in-time copy of the values held by LogMetrics.
type Snapshot struct {
	Gauges     map[string]float64
	Counters   map[string]uint64
	Histograms map[string]HistogramSummary
}

// CounterNames returns the counter names in sorted order.
func (s Snapshot) CounterNames() []string {
	names := make([]string, 0, len(s.Counters))
	for name := range s.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogMetrics keeps metric values in memory and logs them using slog.
type LogMetrics struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	gauges     map[string]float64
	counters   map[string]uint64
	histograms map[string]HistogramSummary
}

// NewLogMetrics creates a new LogMetrics with the given logger.
// If logger is nil, the default logger is used.
func NewLogMetrics(logger *slog.Logger) *LogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetrics{
		logger:     logger,
		gauges:     make(map[string]float64),
		counters:   make(map[string]uint64),
		histograms: make(map[string]HistogramSummary),
	}
}

func (l *LogMetrics) Initialize(ctx context.Context) error {
	l.logger.Debug("metrics initialized")
	return nil
}

// Flush logs all current metric values.
func (l *LogMetrics) Flush(ctx context.Context) error {
	snap := l.Snapshot()
	l.logger.Info("metrics flush",
		"gauges", snap.Gauges,
		"counters", snap.Counters,
		"histograms", snap.Histograms,
	)
	return nil
}

func (l *LogMetrics) Shutdown(ctx context.Context) error {
	l.logger.Debug("metrics shutdown")
	return nil
}

func (l *LogMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gauges[name] = value
	l.logger.Debug("gauge updated", "name", name, "value", value)
	return nil
}

func (l *LogMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counters[name] += value
	l.logger.Debug("counter incremented", "name", name, "value", value, "total", l.counters[name])
	return nil
}

func (l *LogMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.histograms[name]
	if !ok || value < h.Min {
		h.Min = value
	}
	if !ok || value > h.Max {
		h.Max = value
	}
	h.Count++
	h.Sum += value
	l.histograms[name] = h

	l.logger.Debug("histogram recorded", "name", name, "value", value)
	return nil
}

// Snapshot returns a copy of the current values.
func (l *LogMetrics) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Gauges:     make(map[string]float64, len(l.gauges)),
		Counters:   make(map[string]uint64, len(l.counters)),
		Histograms: make(map[string]HistogramSummary, len(l.histograms)),
	}
	for k, v := range l.gauges {
		snap.Gauges[k] = v
	}
	for k, v := range l.counters {
		snap.Counters[k] = v
	}
	for k, v := range l.histograms {
		snap.Histograms[k] = v
	}
	return snap
}

// Metric names used by the transaction flow.
const (
	MetricFlowAttempts             = "flow_attempts"
	MetricFlowRejectedInProgress   = "flow_rejected_in_progress"
	MetricSimulationsFailed        = "simulations_failed"
	MetricTransactionsSent         = "transactions_sent"
	MetricTransactionsConfirmed    = "transactions_confirmed"
	MetricConfirmationsExpired     = "confirmations_expired"
	MetricConfirmationsRejected    = "confirmations_rejected"
	MetricUserAccountsInitialized  = "user_accounts_initialized"
	MetricFlowDurationMilliseconds = "flow_duration_milliseconds"
	MetricSimulationUnitsConsumed  = "simulation_units_consumed"
)
