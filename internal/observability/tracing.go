package observability

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/signalsfoundry/venue-telemetry-sim/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Span exporters accepted by TracingConfig.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const shutdownTimeout = 5 * time.Second

// TracingConfig selects where batch and job-poll spans go.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string // OTLP collector address, host:port
	ServiceName string
	SampleRatio float64
}

// DefaultTracingConfig has tracing off; when switched on it pretty-prints
// every span to stderr.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Exporter:    ExporterStdout,
		Endpoint:    "localhost:4317",
		ServiceName: "venue-telemetry-generator",
		SampleRatio: 1,
	}
}

// Validate rejects unknown exporters and ratios outside [0, 1].
func (c TracingConfig) Validate() error {
	switch strings.ToLower(c.Exporter) {
	case ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio %v outside [0, 1]", c.SampleRatio)
	}
	if c.Enabled && c.ServiceName == "" {
		return fmt.Errorf("tracing service name is required")
	}
	return nil
}

// Tracing owns the process tracer provider. A disabled Tracing installs the
// noop provider and has nothing to flush.
type Tracing struct {
	provider *sdktrace.TracerProvider
	log      logging.Logger
}

// StartTracing installs a global tracer provider and W3C propagators.
func StartTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (*Tracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	t := &Tracing{log: log}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		return t, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s span exporter: %w", cfg.Exporter, err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "venue-telemetry"),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return t, nil
}

// Enabled reports whether spans are being exported.
func (t *Tracing) Enabled() bool { return t != nil && t.provider != nil }

// Shutdown flushes pending spans, giving up after a few seconds. Errors are
// logged, not returned; it runs on the way out of the process.
func (t *Tracing) Shutdown(ctx context.Context) {
	if !t.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := t.provider.Shutdown(ctx); err != nil {
		t.log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if strings.EqualFold(cfg.Exporter, ExporterOTLP) {
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	}
	// Stdout may carry generated records.
	return stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

const tracerName = "github.com/signalsfoundry/venue-telemetry-sim"

// StartSpan starts a span on the global tracer provider. dataset is optional
// and recorded as an attribute when set.
func StartSpan(ctx context.Context, name, dataset string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(extra)+2)
	if dataset != "" {
		attrs = append(attrs, attribute.String("telemetry.dataset", dataset))
	}
	if runID := logging.RunIDFromContext(ctx); runID != "" {
		attrs = append(attrs, attribute.String("run_id", runID))
	}
	attrs = append(attrs, extra...)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
