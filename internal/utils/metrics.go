// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector counts engine activity for the stats endpoint. Counters use
// atomic operations; the name registry is guarded by the mutex.
type MetricsCollector struct {
	counters map[string]*int64
	started  time.Time

	mu sync.RWMutex
}

// Well-known counter names.
const (
	MetricTextCalls          = "collaborator.text_calls"
	MetricVisionCalls        = "collaborator.vision_calls"
	MetricImageCalls         = "collaborator.image_calls"
	MetricContinuationRounds = "storyboard.continuation_rounds"
	MetricScenesParsed       = "storyboard.scenes_parsed"
	MetricPromptCacheHits    = "prompt.cache_hits"
	MetricContinuityHints    = "continuity.hints_injected"
)

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetrics returns the process-wide collector.
func GetMetrics() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = &MetricsCollector{
			counters: make(map[string]*int64),
			started:  time.Now(),
		}
	})
	return globalMetrics
}

func (m *MetricsCollector) counter(name string) *int64 {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[name]; ok {
		return c
	}
	c = new(int64)
	m.counters[name] = c
	return c
}

// Inc increments a named counter by one.
func (m *MetricsCollector) Inc(name string) {
	atomic.AddInt64(m.counter(name), 1)
}

// Add increments a named counter by delta.
func (m *MetricsCollector) Add(name string, delta int64) {
	atomic.AddInt64(m.counter(name), delta)
}

// Value returns the current value of a counter.
func (m *MetricsCollector) Value(name string) int64 {
	return atomic.LoadInt64(m.counter(name))
}

// Snapshot returns all counters plus process uptime in seconds.
func (m *MetricsCollector) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(m.counters)+1)
	for name, c := range m.counters {
		out[name] = atomic.LoadInt64(c)
	}
	out["uptime_seconds"] = int64(time.Since(m.started).Seconds())
	return out
}
