package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricClassesTotal     = "interdex.pack.classes.total"
	metricContainersTotal  = "interdex.pack.containers.total"
	metricFlushDuration    = "interdex.pack.flush.duration.seconds"
	metricCacheHitsTotal   = "interdex.pack.cache.hits.total"
	metricCacheMissesTotal = "interdex.pack.cache.misses.total"

	attrCache = "cache"
)

// PackMetrics holds OTel instruments for orchestrator-run metrics: how many
// classes and containers a pack run produced, how long each flush took,
// and hit/miss counts for the order-lookup and run caches.
type PackMetrics struct {
	classesTotal    metric.Int64Counter
	containersTotal metric.Int64Counter
	flushDuration   metric.Float64Histogram
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// PackStats holds the statistics for a single orchestrator run, decoupled
// from internal/interdex types so observability never imports the
// algorithm package.
type PackStats struct {
	Classes          int64
	Containers       int
	FlushDurations   []time.Duration
	OrderCacheHits   int64
	OrderCacheMisses int64
	RunCacheHits     int64
	RunCacheMisses   int64
}

// NewPackMetrics creates pack-run metric instruments from the given meter.
func NewPackMetrics(mt metric.Meter) (*PackMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PackMetrics{
		classesTotal:    b.counter(metricClassesTotal, "Total classes emitted into containers", "{class}"),
		containersTotal: b.counter(metricContainersTotal, "Total containers finalized", "{container}"),
		flushDuration:   b.histogram(metricFlushDuration, "Per-container flush duration in seconds", "s", durationBucketBoundaries...),
		cacheHits:       b.counter(metricCacheHitsTotal, "Cache hits by cache", "{hit}"),
		cacheMisses:     b.counter(metricCacheMissesTotal, "Cache misses by cache", "{miss}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordRun records statistics for a completed orchestrator run. Safe to
// call on a nil receiver (no-op), so callers needn't guard construction
// failures at every call site.
func (pm *PackMetrics) RecordRun(ctx context.Context, stats PackStats) {
	if pm == nil {
		return
	}

	pm.classesTotal.Add(ctx, stats.Classes)
	pm.containersTotal.Add(ctx, int64(stats.Containers))

	for _, d := range stats.FlushDurations {
		pm.flushDuration.Record(ctx, d.Seconds())
	}

	orderAttrs := metric.WithAttributes(attribute.String(attrCache, "order"))
	pm.cacheHits.Add(ctx, stats.OrderCacheHits, orderAttrs)
	pm.cacheMisses.Add(ctx, stats.OrderCacheMisses, orderAttrs)

	runAttrs := metric.WithAttributes(attribute.String(attrCache, "run"))
	pm.cacheHits.Add(ctx, stats.RunCacheHits, runAttrs)
	pm.cacheMisses.Add(ctx, stats.RunCacheMisses, runAttrs)
}
