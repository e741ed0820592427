// Package metrics tracks runtime counters for the capture pipeline.
package metrics

import (
	"sync"
	"time"
)

// Collector defines the interface for components exposing metrics.
type Collector interface {
	CollectMetrics() map[string]float64
}

// PipelineMetrics aggregates detection-loop statistics. All methods are
// thread-safe; the poller records from its request goroutine while the
// status endpoint reads.
type PipelineMetrics struct {
	mu sync.Mutex

	pollTicks    uint64
	skippedBusy  uint64
	published    uint64
	failures     uint64
	lastFaces    int
	lastTickTime time.Time

	latencyCount int64
	latencyTotal time.Duration
	latencyMin   time.Duration
	latencyMax   time.Duration
}

// NewPipelineMetrics returns zeroed metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{}
}

// RecordTick counts one scheduled poll tick.
func (m *PipelineMetrics) RecordTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollTicks++
	m.lastTickTime = time.Now()
}

// RecordSkippedBusy counts a tick skipped because a request was in flight.
func (m *PipelineMetrics) RecordSkippedBusy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skippedBusy++
}

// RecordFailure counts one swallowed detection failure.
func (m *PipelineMetrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// RecordPublish counts one published result and its face count.
func (m *PipelineMetrics) RecordPublish(faces int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
	m.lastFaces = faces
}

// RecordLatency tracks one detection round-trip duration.
func (m *PipelineMetrics) RecordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyCount++
	m.latencyTotal += d
	if m.latencyMin == 0 || d < m.latencyMin {
		m.latencyMin = d
	}
	if d > m.latencyMax {
		m.latencyMax = d
	}
}

// CollectMetrics implements the Collector interface.
func (m *PipelineMetrics) CollectMetrics() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]float64{
		"poll_ticks":        float64(m.pollTicks),
		"ticks_skipped":     float64(m.skippedBusy),
		"results_published": float64(m.published),
		"failures":          float64(m.failures),
		"last_face_count":   float64(m.lastFaces),
	}
	if m.latencyCount > 0 {
		out["latency_avg_ms"] = float64(m.latencyTotal.Milliseconds()) / float64(m.latencyCount)
		out["latency_min_ms"] = float64(m.latencyMin.Milliseconds())
		out["latency_max_ms"] = float64(m.latencyMax.Milliseconds())
	}
	return out
}
