// Package telemetry installs the global OpenTelemetry trace and metric
// providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gitlab.com/yelinaung/ledger-core/internal/config"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned for an exporter name Setup does not know.
var ErrUnknownExporter = errors.New("unknown telemetry exporter")

// metricInterval is how often metrics are pushed to the exporter.
const metricInterval = 30 * time.Second

// Shutdown flushes and stops the installed providers.
type Shutdown func(ctx context.Context) error

// Setup installs trace and metric providers for exporter. The stdout
// exporter writes to w. With config.ExporterNone nothing is installed and
// the global no-op providers stay in place.
func Setup(ctx context.Context, exporter, serviceName string, w io.Writer) (Shutdown, error) {
	if exporter == "" || exporter == config.ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	spanExporter, metricExporter, err := newExporters(ctx, exporter, w)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	logger.Log.Info().
		Str("exporter", exporter).
		Str("service", serviceName).
		Msg("Telemetry enabled")

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, exporter string, w io.Writer) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		err     error
	)

	switch exporter {
	case config.ExporterStdout:
		if spans, err = stdouttrace.New(stdouttrace.WithWriter(w)); err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		if metrics, err = stdoutmetric.New(stdoutmetric.WithWriter(w)); err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
	case config.ExporterOTLPHTTP:
		if spans, err = otlptracehttp.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/HTTP trace exporter: %w", err)
		}
		if metrics, err = otlpmetrichttp.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/HTTP metric exporter: %w", err)
		}
	case config.ExporterOTLPGRPC:
		if spans, err = otlptracegrpc.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/gRPC trace exporter: %w", err)
		}
		if metrics, err = otlpmetricgrpc.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/gRPC metric exporter: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownExporter, exporter)
	}

	return spans, metrics, nil
}
