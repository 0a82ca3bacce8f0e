package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates metrics for chat turns.
type Metrics struct {
	mu sync.Mutex

	// Counters
	turnTotal    atomic.Int64
	turnFailed   atomic.Int64
	pollAttempts atomic.Int64

	surfaceMetrics map[string]*SurfaceMetrics
	failureCodes   map[string]int64

	// Duration window (simplified for internal use)
	durations    []time.Duration
	maxDurations int
}

// SurfaceMetrics represents metrics for a specific chat surface.
type SurfaceMetrics struct {
	turnCount     atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		surfaceMetrics: make(map[string]*SurfaceMetrics),
		failureCodes:   make(map[string]int64),
		durations:      make([]time.Duration, 0, maxDurations),
		maxDurations:   maxDurations,
	}
}

// RecordTurn records a turn that reached the gateway.
func (m *Metrics) RecordTurn(surface string) {
	m.turnTotal.Add(1)
	m.surface(surface).turnCount.Add(1)
}

// RecordFailure records a failed turn and its error code.
func (m *Metrics) RecordFailure(surface, code string) {
	m.turnFailed.Add(1)
	m.surface(surface).errorCount.Add(1)

	m.mu.Lock()
	m.failureCodes[code]++
	m.mu.Unlock()
}

// RecordPollAttempts records how many run-status checks a turn needed.
func (m *Metrics) RecordPollAttempts(n int) {
	m.pollAttempts.Add(int64(n))
}

// RecordDuration records a turn duration.
func (m *Metrics) RecordDuration(surface string, duration time.Duration) {
	sm := m.surface(surface)
	sm.totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

func (m *Metrics) surface(name string) *SurfaceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.surfaceMetrics[name]
	if !ok {
		sm = &SurfaceMetrics{}
		m.surfaceMetrics[name] = sm
	}
	return sm
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.turnTotal.Store(0)
	m.turnFailed.Store(0)
	m.pollAttempts.Store(0)

	m.mu.Lock()
	m.surfaceMetrics = make(map[string]*SurfaceMetrics)
	m.failureCodes = make(map[string]int64)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	surfaces := make(map[string]*SurfaceMetricsSnapshot, len(m.surfaceMetrics))
	for name, sm := range m.surfaceMetrics {
		count := sm.turnCount.Load()
		snap := &SurfaceMetricsSnapshot{
			TurnCount:     count,
			TotalDuration: sm.totalDuration.Load(),
			ErrorCount:    sm.errorCount.Load(),
		}
		if count > 0 {
			snap.AverageDuration = snap.TotalDuration / count
		}
		surfaces[name] = snap
	}

	codes := make(map[string]int64, len(m.failureCodes))
	for code, n := range m.failureCodes {
		codes[code] = n
	}

	sorted := make([]time.Duration, len(m.durations))
	copy(sorted, m.durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return &MetricsSnapshot{
		TurnTotal:     m.turnTotal.Load(),
		TurnFailed:    m.turnFailed.Load(),
		PollAttempts:  m.pollAttempts.Load(),
		Surfaces:      surfaces,
		FailureCodes:  codes,
		DurationCount: len(sorted),
		P50Latency:    percentile(sorted, 0.50),
		P95Latency:    percentile(sorted, 0.95),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TurnTotal     int64
	TurnFailed    int64
	PollAttempts  int64
	Surfaces      map[string]*SurfaceMetricsSnapshot
	FailureCodes  map[string]int64
	DurationCount int
	P50Latency    time.Duration
	P95Latency    time.Duration
}

// SurfaceMetricsSnapshot represents metrics for a specific surface.
type SurfaceMetricsSnapshot struct {
	TurnCount       int64
	TotalDuration   int64
	ErrorCount      int64
	AverageDuration int64
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.TurnTotal == 0 {
		return 100.0
	}
	return float64(s.TurnTotal-s.TurnFailed) / float64(s.TurnTotal) * 100.0
}
