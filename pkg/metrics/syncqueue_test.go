package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSyncQueueMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSyncQueueMetrics(reg)

	metrics.SetDepth("high", 3)
	metrics.IncApplied("order")
	metrics.IncConflict("timestamp_wins")
	metrics.IncFailed("order")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "sync_queue_applied", "resource_type", "order"); err != nil {
		t.Fatalf("fetch applied: %v", err)
	} else if got != 1 {
		t.Fatalf("expected applied=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "sync_queue_conflicts", "strategy", "timestamp_wins"); err != nil {
		t.Fatalf("fetch conflicts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected conflicts=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "sync_queue_failed", "resource_type", "order"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "sync_queue_depth")
	if mf == nil {
		t.Fatalf("gauge sync_queue_depth not found")
	}
	found := false
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "priority", "high") {
			found = true
			if got := metric.GetGauge().GetValue(); got != 3 {
				t.Fatalf("expected depth=3, got %f", got)
			}
		}
	}
	if !found {
		t.Fatalf("gauge missing priority label")
	}
}

func TestSyncQueueMetricsNilSafe(t *testing.T) {
	var metrics *SyncQueueMetrics
	metrics.SetDepth("high", 1)
	metrics.IncApplied("order")
	metrics.IncConflict("merge")
	metrics.IncFailed("order")
}
