package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/joseph-ayodele/gvb-ingest/internal/ingest"

// Telemetry holds the batch spans and instruments.
type Telemetry struct {
	tracer   trace.Tracer
	files    metric.Int64Counter
	rows     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewTelemetry creates instruments from the given providers. Nil providers
// fall back to the global ones, which are no-ops unless an SDK is installed.
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *Telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	t := &Telemetry{tracer: tp.Tracer(instrumentationName)}

	var err error
	t.files, err = meter.Int64Counter("gvb.ingest.files",
		metric.WithDescription("Files processed, by outcome"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		t.files, _ = meter.Int64Counter("gvb.ingest.files")
	}
	t.rows, err = meter.Int64Counter("gvb.ingest.rows",
		metric.WithDescription("Rows committed to destination tables"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		t.rows, _ = meter.Int64Counter("gvb.ingest.rows")
	}
	t.duration, err = meter.Float64Histogram("gvb.ingest.file.duration",
		metric.WithDescription("Time spent on one file"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		t.duration, _ = meter.Float64Histogram("gvb.ingest.file.duration")
	}
	return t
}

func (t *Telemetry) startBatch(ctx context.Context, files int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gvb.batch", trace.WithAttributes(attribute.Int("gvb.files", files)))
}

func (t *Telemetry) startFile(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gvb.file", trace.WithAttributes(attribute.String("gvb.file", name)))
}

// endFile records the outcome of a file and closes its span.
func (t *Telemetry) endFile(ctx context.Context, span trace.Span, r FileResult, code string, took time.Duration) {
	attrs := []attribute.KeyValue{attribute.String("gvb.status", string(r.Status))}
	if r.RecordType != "" {
		attrs = append(attrs, attribute.String("gvb.record_type", r.RecordType))
	}
	if code != "" {
		attrs = append(attrs, attribute.String("error.type", code))
	}
	span.SetAttributes(attrs...)
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, code)
	}
	span.End()

	set := metric.WithAttributes(attrs...)
	t.files.Add(ctx, 1, set)
	if r.Rows > 0 {
		t.rows.Add(ctx, int64(r.Rows), metric.WithAttributes(attribute.String("gvb.record_type", r.RecordType)))
	}
	t.duration.Record(ctx, float64(took.Milliseconds()), set)
}
