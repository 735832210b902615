package metrics

import (
	"context"
	"errors"
	"testing"
)

type failingMetrics struct {
	NoopMetrics
	calls int
}

func (f *failingMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	f.calls++
	return errors.New("backend down")
}

func TestLogMetricsCounters(t *testing.T) {
	ctx := context.Background()
	m := NewLogMetrics(nil)

	_ = m.IncrementCounter(ctx, MetricFlowAttempts, 1)
	_ = m.IncrementCounter(ctx, MetricFlowAttempts, 2)
	_ = m.IncrementCounter(ctx, MetricTransactionsSent, 1)

	snap := m.Snapshot()
	if snap.Counters[MetricFlowAttempts] != 3 {
		t.Errorf("expected 3 attempts, got %d", snap.Counters[MetricFlowAttempts])
	}

	names := snap.CounterNames()
	if len(names) != 2 || names[0] != MetricFlowAttempts || names[1] != MetricTransactionsSent {
		t.Errorf("expected sorted counter names, got %v", names)
	}
}

func TestLogMetricsHistogram(t *testing.T) {
	ctx := context.Background()
	m := NewLogMetrics(nil)

	for _, v := range []float64{30, 10, 20} {
		_ = m.RecordHistogram(ctx, MetricFlowDurationMilliseconds, v)
	}

	h := m.Snapshot().Histograms[MetricFlowDurationMilliseconds]
	if h.Count != 3 {
		t.Errorf("expected count 3, got %d", h.Count)
	}
	if h.Min != 10 || h.Max != 30 {
		t.Errorf("expected min 10 max 30, got %v %v", h.Min, h.Max)
	}
	if h.Mean() != 20 {
		t.Errorf("expected mean 20, got %v", h.Mean())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewLogMetrics(nil)
	_ = m.UpdateGauge(ctx, "pending", 1)

	snap := m.Snapshot()
	snap.Gauges["pending"] = 99

	if m.Snapshot().Gauges["pending"] != 1 {
		t.Error("expected snapshot mutation not to leak into LogMetrics")
	}
}

func TestCollectionContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	failing := &failingMetrics{}
	logm := NewLogMetrics(nil)
	c := NewCollection(failing, logm)

	err := c.IncrementCounter(ctx, MetricSimulationsFailed, 1)
	if err == nil {
		t.Fatal("expected joined error from failing backend")
	}
	if failing.calls != 1 {
		t.Errorf("expected failing backend to be called once, got %d", failing.calls)
	}
	if logm.Snapshot().Counters[MetricSimulationsFailed] != 1 {
		t.Error("expected second backend to still record the counter")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 backends, got %d", c.Len())
	}
}
