package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

func attr(kvs []attribute.KeyValue, key string) string {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "%s is an int64 sum", name)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return metricdata.Sum[int64]{}
}

func TestTelemetryPerFile(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
	})

	e := newEnv(t, typeA{}, typeB{})
	e.put(t, "1-good.csv", "x;y\n1;2\n3;4\n")
	e.put(t, "2-bad.csv", "x;q\n1;2\n")
	deps := e.deps()
	deps.Telemetry = NewTelemetry(tp, mp)

	stats, err := NewOrchestrator(deps, Options{}).RunBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), stats.Loaded)
	require.Equal(t, uint32(1), stats.Failed)

	files := map[string]sdktrace.ReadOnlySpan{}
	var batches int
	for _, s := range spans.Ended() {
		switch s.Name() {
		case "gvb.file":
			files[attr(s.Attributes(), "gvb.file")] = s
		case "gvb.batch":
			batches++
		}
	}
	assert.Equal(t, 1, batches)
	require.Len(t, files, 2)

	good := files["1-good.csv"]
	require.NotNil(t, good)
	assert.Equal(t, codes.Unset, good.Status().Code)
	assert.Equal(t, "loaded", attr(good.Attributes(), "gvb.status"))
	assert.Equal(t, "A", attr(good.Attributes(), "gvb.record_type"))
	assert.Empty(t, attr(good.Attributes(), "error.type"))

	bad := files["2-bad.csv"]
	require.NotNil(t, bad)
	assert.Equal(t, codes.Error, bad.Status().Code)
	assert.Equal(t, common.CodeUnresolvableSchema, bad.Status().Description)
	assert.Equal(t, common.CodeUnresolvableSchema, attr(bad.Attributes(), "error.type"))
	assert.Equal(t, "failed", attr(bad.Attributes(), "gvb.status"))
	assert.Len(t, bad.Events(), 1, "error recorded on the span")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	rows := sumOf(t, rm, "gvb.ingest.rows")
	require.Len(t, rows.DataPoints, 1)
	assert.Equal(t, int64(2), rows.DataPoints[0].Value)
	rt, ok := rows.DataPoints[0].Attributes.Value("gvb.record_type")
	require.True(t, ok)
	assert.Equal(t, "A", rt.AsString())

	byStatus := map[string]int64{}
	for _, dp := range sumOf(t, rm, "gvb.ingest.files").DataPoints {
		v, _ := dp.Attributes.Value("gvb.status")
		byStatus[v.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"loaded": 1, "failed": 1}, byStatus)
}
