package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"pbimirror/internal/config"
)

const (
	ServiceName = "pbimirror"
	MeterName   = "pbimirror"
)

// Telemetry bundles the tracer and meter used by the walk. Fields for a
// disabled signal stay nil, except Tracer and Meter which fall back to no-ops.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prometheus.Registry
	MetricsHandler http.Handler
}

// NewTelemetry sets up tracing and metrics per cfg and installs them as the
// global otel providers. Spans go to stderr.
func NewTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	return newTelemetry(cfg, logger, os.Stderr)
}

func newTelemetry(cfg config.TelemetryConfig, logger *slog.Logger, spanOut io.Writer) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	logger.Info("Setting up telemetry",
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", uuid.NewString()),
	)

	t := &Telemetry{
		Tracer: tracenoop.NewTracerProvider().Tracer(ServiceName),
		Meter:  metricnoop.NewMeterProvider().Meter(MeterName),
	}

	if cfg.EnableTracing && cfg.TraceExporter != "none" {
		tp, err := newTracerProvider(cfg, res, spanOut)
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
		t.TracerProvider = tp
		t.Tracer = tp.Tracer(ServiceName, trace.WithInstrumentationVersion(config.AppVersion))
		otel.SetTracerProvider(tp)
	}

	if cfg.EnableMetrics {
		registry := prometheus.NewRegistry()
		mp, err := newMeterProvider(res, registry)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		t.Registry = registry
		t.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		t.MeterProvider = mp
		t.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})
	return t, nil
}

func newTracerProvider(cfg config.TelemetryConfig, res *resource.Resource, out io.Writer) (*sdktrace.TracerProvider, error) {
	if cfg.TraceExporter != "stdout" {
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.TraceExporter)
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

// newMeterProvider exports every instrument through registry.
func newMeterProvider(res *resource.Resource, registry *prometheus.Registry) (*sdkmetric.MeterProvider, error) {
	reader, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus reader: %w", err)
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)), nil
}

// Shutdown flushes pending spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// MirrorMetrics holds the instruments recorded during a catalog walk
type MirrorMetrics struct {
	ItemsTotal     metric.Int64Counter
	DownloadsTotal metric.Int64Counter
	BytesWritten   metric.Int64Counter
	ListFailures   metric.Int64Counter
	WalkDuration   metric.Float64Histogram
}

// NewMirrorMetrics creates the walk instruments on meter
func NewMirrorMetrics(meter metric.Meter) (*MirrorMetrics, error) {
	itemsTotal, err := meter.Int64Counter(
		"mirror_items_total",
		metric.WithDescription("Total number of catalog items visited"),
	)
	if err != nil {
		return nil, err
	}

	downloadsTotal, err := meter.Int64Counter(
		"mirror_downloads_total",
		metric.WithDescription("Total number of file items processed, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	bytesWritten, err := meter.Int64Counter(
		"mirror_bytes_written_total",
		metric.WithDescription("Total bytes written to the mirror"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	listFailures, err := meter.Int64Counter(
		"mirror_list_failures_total",
		metric.WithDescription("Total number of folder listings that failed"),
	)
	if err != nil {
		return nil, err
	}

	walkDuration, err := meter.Float64Histogram(
		"mirror_walk_duration_seconds",
		metric.WithDescription("Duration of a full catalog walk"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MirrorMetrics{
		ItemsTotal:     itemsTotal,
		DownloadsTotal: downloadsTotal,
		BytesWritten:   bytesWritten,
		ListFailures:   listFailures,
		WalkDuration:   walkDuration,
	}, nil
}

// RecordItem counts one visited catalog item
func (m *MirrorMetrics) RecordItem(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.ItemsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordOutcome counts one processed file and the bytes it wrote
func (m *MirrorMetrics) RecordOutcome(ctx context.Context, outcome string, bytes int) {
	if m == nil {
		return
	}
	m.DownloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if bytes > 0 {
		m.BytesWritten.Add(ctx, int64(bytes))
	}
}

// RecordListFailure counts one failed folder listing
func (m *MirrorMetrics) RecordListFailure(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.ListFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("error.type", errorType)))
}

// RecordWalk records the duration of a finished walk
func (m *MirrorMetrics) RecordWalk(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.WalkDuration.Record(ctx, d.Seconds())
}

// RecordSpanError records an error on span and marks it failed
func RecordSpanError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
