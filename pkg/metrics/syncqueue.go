package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncQueueMetrics records offline sync queue activity.
type SyncQueueMetrics struct {
	depth    *prometheus.GaugeVec
	applied  *prometheus.CounterVec
	conflict *prometheus.CounterVec
	failed   *prometheus.CounterVec
}

// NewSyncQueueMetrics registers the sync queue metrics on the provided registerer.
func NewSyncQueueMetrics(reg prometheus.Registerer) *SyncQueueMetrics {
	if reg == nil {
		return &SyncQueueMetrics{}
	}
	depth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Pending entries in the offline sync queue by priority.",
	}, []string{"priority"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_queue_applied",
		Help: "Sync queue entries applied to the server state.",
	}, []string{"resource_type"})
	conflict := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_queue_conflicts",
		Help: "Sync queue conflicts by resolution strategy.",
	}, []string{"strategy"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_queue_failed",
		Help: "Sync queue entries that exhausted their retry budget.",
	}, []string{"resource_type"})
	reg.MustRegister(depth, applied, conflict, failed)
	return &SyncQueueMetrics{
		depth:    depth,
		applied:  applied,
		conflict: conflict,
		failed:   failed,
	}
}

// SetDepth records the current queue depth for a priority band.
func (s *SyncQueueMetrics) SetDepth(priority string, depth int) {
	if s == nil || s.depth == nil {
		return
	}
	s.depth.WithLabelValues(normalizeLabel(priority)).Set(float64(depth))
}

// IncApplied increments the applied counter for a resource type.
func (s *SyncQueueMetrics) IncApplied(resourceType string) {
	if s == nil || s.applied == nil {
		return
	}
	s.applied.WithLabelValues(normalizeLabel(resourceType)).Inc()
}

// IncConflict increments the conflict counter for a resolution strategy.
func (s *SyncQueueMetrics) IncConflict(strategy string) {
	if s == nil || s.conflict == nil {
		return
	}
	s.conflict.WithLabelValues(normalizeLabel(strategy)).Inc()
}

// IncFailed increments the terminal failure counter for a resource type.
func (s *SyncQueueMetrics) IncFailed(resourceType string) {
	if s == nil || s.failed == nil {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(resourceType)).Inc()
}
