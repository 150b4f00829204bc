package ivarray

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
//	    hits   prometheus.Counter
//	    misses prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordSearch(hit bool, duration time.Duration, err error) {
//	    if hit {
//	        p.hits.Inc()
//	    } else {
//	        p.misses.Inc()
//	    }
//	}
type MetricsCollector interface {
	// RecordSearch is called after each search. hit reports whether the
	// value was served from the cache.
	RecordSearch(hit bool, duration time.Duration, err error)

	// RecordInsert is called after each insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordModify is called after each modify operation.
	RecordModify(duration time.Duration, err error)

	// RecordRemove is called after each remove operation.
	RecordRemove(duration time.Duration, err error)

	// RecordEviction is called for every evicted value. writeBack reports
	// whether the value had to be written to the block store first.
	RecordEviction(writeBack bool)

	// RecordSave is called after each save. flushed is the number of index
	// records written.
	RecordSave(flushed int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSearch(bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordInsert(time.Duration, error)       {}
func (NoopMetricsCollector) RecordModify(time.Duration, error)       {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)       {}
func (NoopMetricsCollector) RecordEviction(bool)                     {}
func (NoopMetricsCollector) RecordSave(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SearchCount      atomic.Int64
	SearchHits       atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	ModifyCount      atomic.Int64
	ModifyErrors     atomic.Int64
	RemoveCount      atomic.Int64
	RemoveErrors     atomic.Int64
	Evictions        atomic.Int64
	WriteBacks       atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SavedRecords     atomic.Int64
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(hit bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if hit {
		b.SearchHits.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(_ time.Duration, err error) {
	b.InsertCount.Add(1)
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordModify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordModify(_ time.Duration, err error) {
	b.ModifyCount.Add(1)
	if err != nil {
		b.ModifyErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(_ time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(writeBack bool) {
	b.Evictions.Add(1)
	if writeBack {
		b.WriteBacks.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(flushed int, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SavedRecords.Add(int64(flushed))
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SearchCount:    b.SearchCount.Load(),
		SearchHits:     b.SearchHits.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: b.getAvgSearchNanos(),
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		ModifyCount:    b.ModifyCount.Load(),
		ModifyErrors:   b.ModifyErrors.Load(),
		RemoveCount:    b.RemoveCount.Load(),
		RemoveErrors:   b.RemoveErrors.Load(),
		Evictions:      b.Evictions.Load(),
		WriteBacks:     b.WriteBacks.Load(),
		SaveCount:      b.SaveCount.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		SavedRecords:   b.SavedRecords.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SearchCount    int64
	SearchHits     int64
	SearchErrors   int64
	SearchAvgNanos int64
	InsertCount    int64
	InsertErrors   int64
	ModifyCount    int64
	ModifyErrors   int64
	RemoveCount    int64
	RemoveErrors   int64
	Evictions      int64
	WriteBacks     int64
	SaveCount      int64
	SaveErrors     int64
	SavedRecords   int64
}

// HitRatio returns the share of searches served from the cache.
func (s BasicMetricsStats) HitRatio() float64 {
	if s.SearchCount == 0 {
		return 0
	}
	return float64(s.SearchHits) / float64(s.SearchCount)
}
