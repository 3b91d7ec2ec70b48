// Package observability builds the OpenTelemetry trace and metric providers
// the ingestion batches report to.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

// Providers is a configured tracer and meter provider pair.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdown []func(context.Context) error
}

// Setup builds providers for cfg.Exporter. "none" yields no-op providers.
// Shutdown flushes pending spans and metrics.
func Setup(ctx context.Context, cfg common.TelemetryConfig, logger *slog.Logger) (*Providers, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Exporter == "" || cfg.Exporter == common.ExporterNone {
		return &Providers{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		}, nil
	}

	p := &Providers{}
	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		err     error
	)
	switch cfg.Exporter {
	case common.ExporterStdout:
		var w io.Writer = os.Stderr
		if cfg.File != "" {
			f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, common.NewAppError(common.CodeConfig, "open telemetry file", err)
			}
			w = f
			// registered first so it runs after both providers flushed
			p.shutdown = append(p.shutdown, func(context.Context) error { return f.Close() })
		}
		if spans, err = stdouttrace.New(stdouttrace.WithWriter(w)); err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		if metrics, err = stdoutmetric.New(stdoutmetric.WithWriter(w)); err != nil {
			return nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
	case common.ExporterOTLP:
		traceOpts := []otlptracegrpc.Option{}
		metricOpts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			traceOpts = append(traceOpts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
			metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		if spans, err = otlptracegrpc.New(ctx, traceOpts...); err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		if metrics, err = otlpmetricgrpc.New(ctx, metricOpts...); err != nil {
			_ = spans.Shutdown(ctx)
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
	default:
		return nil, common.NewAppError(common.CodeConfig,
			fmt.Sprintf("unknown telemetry exporter %q", cfg.Exporter), common.ErrInvalidInput)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
	)
	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	p.TracerProvider = tp
	p.MeterProvider = mp
	p.shutdown = append(p.shutdown, tp.Shutdown, mp.Shutdown)

	logger.Info("telemetry enabled", "exporter", cfg.Exporter, "endpoint", cfg.Endpoint)
	return p, nil
}

// Shutdown flushes and stops the providers in reverse setup order.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, p.shutdown[i](ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
