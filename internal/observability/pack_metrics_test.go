package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/interdex-project/interdex/internal/observability"
)

func setupPackMeter(t *testing.T) (*observability.PackMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	pm, err := observability.NewPackMetrics(meter)
	require.NoError(t, err)

	return pm, reader
}

func TestNewPackMetrics(t *testing.T) {
	t.Parallel()

	pm, _ := setupPackMeter(t)
	assert.NotNil(t, pm)
}

func TestPackMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	pm, reader := setupPackMeter(t)
	ctx := context.Background()

	pm.RecordRun(ctx, observability.PackStats{
		Classes:          10000,
		Containers:       5,
		FlushDurations:   []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond},
		OrderCacheHits:   50,
		OrderCacheMisses: 10,
		RunCacheHits:     1,
		RunCacheMisses:   0,
	})

	rm := collectMetrics(t, reader)

	classes := findMetric(rm, "interdex.pack.classes.total")
	require.NotNil(t, classes, "classes counter should exist")

	containers := findMetric(rm, "interdex.pack.containers.total")
	require.NotNil(t, containers, "containers counter should exist")

	flushDur := findMetric(rm, "interdex.pack.flush.duration.seconds")
	require.NotNil(t, flushDur, "flush duration histogram should exist")

	hist, ok := flushDur.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram data type")
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, uint64(3), hist.DataPoints[0].Count, "should have 3 duration recordings")

	cacheHits := findMetric(rm, "interdex.pack.cache.hits.total")
	require.NotNil(t, cacheHits, "cache hits counter should exist")

	cacheMisses := findMetric(rm, "interdex.pack.cache.misses.total")
	require.NotNil(t, cacheMisses, "cache misses counter should exist")
}

func TestPackMetrics_RecordRun_NilReceiver(t *testing.T) {
	t.Parallel()

	var pm *observability.PackMetrics

	// Should not panic.
	pm.RecordRun(context.Background(), observability.PackStats{
		Classes:    10,
		Containers: 1,
	})
}
