// Package telemetry builds the OpenTelemetry providers used to trace and measure task runs.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// Supported exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

const (
	serviceNameAttributeKeyConstant       = "service.name"
	serviceVersionAttributeKeyConstant    = "service.version"
	defaultServiceNameConstant            = "emanate"
	unknownExporterErrorTemplateConstant  = "unsupported telemetry exporter %q (expected %s or %s)"
	traceExporterErrorTemplateConstant    = "unable to create trace exporter: %w"
	metricExporterErrorTemplateConstant   = "unable to create metric exporter: %w"
	providerShutdownErrorTemplateConstant = "telemetry shutdown: %w"
)

// Configuration selects the exporter and the service identity attached to telemetry.
type Configuration struct {
	ServiceName    string
	ServiceVersion string
	Exporter       string
	Writer         io.Writer
}

// Providers holds the tracer and meter providers for a run. Nil providers leave the
// global OpenTelemetry defaults in place.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdownFunctions []func(context.Context) error
}

// Setup constructs providers for configuration. The none exporter yields empty providers.
func Setup(configuration Configuration) (Providers, error) {
	exporter := strings.ToLower(strings.TrimSpace(configuration.Exporter))
	switch exporter {
	case "", ExporterNone:
		return Providers{}, nil
	case ExporterStdout:
	default:
		return Providers{}, fmt.Errorf(unknownExporterErrorTemplateConstant, configuration.Exporter, ExporterNone, ExporterStdout)
	}

	writer := configuration.Writer
	if writer == nil {
		writer = os.Stderr
	}

	serviceName := strings.TrimSpace(configuration.ServiceName)
	if len(serviceName) == 0 {
		serviceName = defaultServiceNameConstant
	}
	serviceResource := resource.NewSchemaless(
		attribute.String(serviceNameAttributeKeyConstant, serviceName),
		attribute.String(serviceVersionAttributeKeyConstant, configuration.ServiceVersion),
	)

	traceExporter, traceError := stdouttrace.New(stdouttrace.WithWriter(writer), stdouttrace.WithPrettyPrint())
	if traceError != nil {
		return Providers{}, fmt.Errorf(traceExporterErrorTemplateConstant, traceError)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(serviceResource),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	metricExporter, metricError := stdoutmetric.New(stdoutmetric.WithWriter(writer), stdoutmetric.WithPrettyPrint())
	if metricError != nil {
		return Providers{}, multierr.Append(
			fmt.Errorf(metricExporterErrorTemplateConstant, metricError),
			tracerProvider.Shutdown(context.Background()),
		)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(serviceResource),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)

	return Providers{
		TracerProvider:    tracerProvider,
		MeterProvider:     meterProvider,
		shutdownFunctions: []func(context.Context) error{tracerProvider.Shutdown, meterProvider.Shutdown},
	}, nil
}

// Shutdown flushes and stops every provider created by Setup.
func (providers Providers) Shutdown(executionContext context.Context) error {
	var combinedError error
	for _, shutdown := range providers.shutdownFunctions {
		combinedError = multierr.Append(combinedError, shutdown(executionContext))
	}
	if combinedError != nil {
		return fmt.Errorf(providerShutdownErrorTemplateConstant, combinedError)
	}
	return nil
}

// Enabled reports whether Setup created exporting providers.
func (providers Providers) Enabled() bool {
	return len(providers.shutdownFunctions) > 0
}
