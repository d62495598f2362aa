package retrieval

import (
	"sync"
	"time"
)

// Stats is a read-only snapshot of the engine's running counters.
type Stats struct {
	TotalQueries   int64
	SemanticCount  int64
	LexicalCount   int64
	HybridCount    int64
	DegradedCount  int64
	ErrorCount     int64
	AverageLatency time.Duration
}

// statsCounters is the engine-owned mutable state behind Stats.
// Lock-protected rather than a process-wide singleton.
type statsCounters struct {
	mu         sync.Mutex
	total      int64
	semantic   int64
	lexical    int64
	hybrid     int64
	degraded   int64
	errors     int64
	totalNanos int64
}

func (s *statsCounters) record(mode Mode, degraded bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.totalNanos += elapsed.Nanoseconds()
	switch mode {
	case ModeSemanticOnly:
		s.semantic++
	case ModeLexicalOnly:
		s.lexical++
	case ModeHybrid:
		s.hybrid++
	}
	if degraded {
		s.degraded++
	}
}

func (s *statsCounters) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() Stats {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()

	var avg time.Duration
	if e.stats.total > 0 {
		avg = time.Duration(e.stats.totalNanos / e.stats.total)
	}

	return Stats{
		TotalQueries:   e.stats.total,
		SemanticCount:  e.stats.semantic,
		LexicalCount:   e.stats.lexical,
		HybridCount:    e.stats.hybrid,
		DegradedCount:  e.stats.degraded,
		ErrorCount:     e.stats.errors,
		AverageLatency: avg,
	}
}
