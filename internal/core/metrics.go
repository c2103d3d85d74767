package core

import (
	"sync"
	"time"
)

// RunMetrics accumulates per-run tallies. Only the pipeline mutates it;
// callers read a Snapshot.
type RunMetrics struct {
	mu sync.Mutex

	runID     string
	total     int
	processed int
	skipped   int
	fromCache int

	perCategory             map[Category]int
	perClassificationStatus map[ClassificationStatus]int
	perResponseStatus       map[ResponseStatus]int
	errorsByKind            map[string]int

	confidenceSum   float64
	confidenceCount int

	startedAt  time.Time
	finishedAt time.Time
}

// MetricsSnapshot is the read-only view of a run's metrics.
type MetricsSnapshot struct {
	RunID     string
	Total     int
	Processed int
	Skipped   int
	FromCache int

	PerCategory             map[Category]int
	PerClassificationStatus map[ClassificationStatus]int
	PerResponseStatus       map[ResponseStatus]int
	ErrorsByKind            map[string]int

	AvgConfidence float64

	StartedAt  time.Time
	FinishedAt time.Time
}

func newRunMetrics(runID string, total int) *RunMetrics {
	return &RunMetrics{
		runID:                   runID,
		total:                   total,
		perCategory:             make(map[Category]int),
		perClassificationStatus: make(map[ClassificationStatus]int),
		perResponseStatus:       make(map[ResponseStatus]int),
		errorsByKind:            make(map[string]int),
		startedAt:               time.Now(),
	}
}

func (m *RunMetrics) recordOutcome(outcome *TriageOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed++
	if cls := outcome.Classification; cls != nil {
		m.perCategory[cls.Category]++
		m.perClassificationStatus[cls.Status]++
		m.confidenceSum += cls.Confidence
		m.confidenceCount++
		if cls.FromCache {
			m.fromCache++
		}
	}
	if resp := outcome.Response; resp != nil {
		m.perResponseStatus[resp.Status]++
	}
}

func (m *RunMetrics) recordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorsByKind[kind]++
}

func (m *RunMetrics) finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.skipped = m.total - m.processed
	m.finishedAt = time.Now()
}

// Snapshot returns a copy safe to hand to callers.
func (m *RunMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		RunID:                   m.runID,
		Total:                   m.total,
		Processed:               m.processed,
		Skipped:                 m.skipped,
		FromCache:               m.fromCache,
		PerCategory:             make(map[Category]int, len(m.perCategory)),
		PerClassificationStatus: make(map[ClassificationStatus]int, len(m.perClassificationStatus)),
		PerResponseStatus:       make(map[ResponseStatus]int, len(m.perResponseStatus)),
		ErrorsByKind:            make(map[string]int, len(m.errorsByKind)),
		StartedAt:               m.startedAt,
		FinishedAt:              m.finishedAt,
	}
	for k, v := range m.perCategory {
		snap.PerCategory[k] = v
	}
	for k, v := range m.perClassificationStatus {
		snap.PerClassificationStatus[k] = v
	}
	for k, v := range m.perResponseStatus {
		snap.PerResponseStatus[k] = v
	}
	for k, v := range m.errorsByKind {
		snap.ErrorsByKind[k] = v
	}
	if m.confidenceCount > 0 {
		snap.AvgConfidence = m.confidenceSum / float64(m.confidenceCount)
	}
	return snap
}
