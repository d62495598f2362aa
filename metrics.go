package quizd

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    ingestCounter prometheus.Counter
//	    quizHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordIngest(count, failed int, duration time.Duration) {
//	    p.ingestCounter.Add(float64(count))
//	    // ... record failures, duration, etc.
//	}
type MetricsCollector interface {
	// RecordIngest is called after each ingest call. count is the number
	// of chunks attempted, lexicalOnly the number indexed without an
	// embedding, duration the total time taken.
	RecordIngest(count, lexicalOnly int, duration time.Duration)

	// RecordRemove is called after each chunk removal.
	RecordRemove(duration time.Duration, err error)

	// RecordRetrieve is called after each retrieval. k is the requested
	// result count, degraded whether the query was served in a weaker
	// mode than requested, err nil on success.
	RecordRetrieve(k int, degraded bool, duration time.Duration, err error)

	// RecordQuiz is called after each quiz run. want/got are the
	// requested and delivered question counts.
	RecordQuiz(want, got int, duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save or load.
	RecordSnapshot(op string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, int, time.Duration)           {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)              {}
func (NoopMetricsCollector) RecordRetrieve(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuiz(int, int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSnapshot(string, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount        atomic.Int64
	IngestChunks       atomic.Int64
	IngestLexicalOnly  atomic.Int64
	RemoveCount        atomic.Int64
	RemoveErrors       atomic.Int64
	RetrieveCount      atomic.Int64
	RetrieveDegraded   atomic.Int64
	RetrieveErrors     atomic.Int64
	RetrieveTotalNanos atomic.Int64
	QuizCount          atomic.Int64
	QuizShort          atomic.Int64
	QuizErrors         atomic.Int64
	QuizTotalNanos     atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(count, lexicalOnly int, duration time.Duration) {
	b.IngestCount.Add(1)
	b.IngestChunks.Add(int64(count))
	b.IngestLexicalOnly.Add(int64(lexicalOnly))
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordRetrieve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRetrieve(k int, degraded bool, duration time.Duration, err error) {
	b.RetrieveCount.Add(1)
	b.RetrieveTotalNanos.Add(duration.Nanoseconds())
	if degraded {
		b.RetrieveDegraded.Add(1)
	}
	if err != nil {
		b.RetrieveErrors.Add(1)
	}
}

// RecordQuiz implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuiz(want, got int, duration time.Duration, err error) {
	b.QuizCount.Add(1)
	b.QuizTotalNanos.Add(duration.Nanoseconds())
	if got < want {
		b.QuizShort.Add(1)
	}
	if err != nil {
		b.QuizErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(op string, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:       b.IngestCount.Load(),
		IngestChunks:      b.IngestChunks.Load(),
		IngestLexicalOnly: b.IngestLexicalOnly.Load(),
		RemoveCount:       b.RemoveCount.Load(),
		RemoveErrors:      b.RemoveErrors.Load(),
		RetrieveCount:     b.RetrieveCount.Load(),
		RetrieveDegraded:  b.RetrieveDegraded.Load(),
		RetrieveErrors:    b.RetrieveErrors.Load(),
		RetrieveAvgNanos:  b.avgRetrieveNanos(),
		QuizCount:         b.QuizCount.Load(),
		QuizShort:         b.QuizShort.Load(),
		QuizErrors:        b.QuizErrors.Load(),
		QuizAvgNanos:      b.avgQuizNanos(),
		SnapshotCount:     b.SnapshotCount.Load(),
		SnapshotErrors:    b.SnapshotErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avgRetrieveNanos() int64 {
	count := b.RetrieveCount.Load()
	if count == 0 {
		return 0
	}
	return b.RetrieveTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) avgQuizNanos() int64 {
	count := b.QuizCount.Load()
	if count == 0 {
		return 0
	}
	return b.QuizTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount       int64
	IngestChunks      int64
	IngestLexicalOnly int64
	RemoveCount       int64
	RemoveErrors      int64
	RetrieveCount     int64
	RetrieveDegraded  int64
	RetrieveErrors    int64
	RetrieveAvgNanos  int64
	QuizCount         int64
	QuizShort         int64
	QuizErrors        int64
	QuizAvgNanos      int64
	SnapshotCount     int64
	SnapshotErrors    int64
}
