package telemetry_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/emanator/internal/telemetry"
)

func TestSetupWithoutExporterLeavesGlobalProviders(t *testing.T) {
	for _, exporter := range []string{"", "none", " NONE "} {
		providers, setupError := telemetry.Setup(telemetry.Configuration{Exporter: exporter})
		require.NoError(t, setupError)
		require.Nil(t, providers.TracerProvider)
		require.Nil(t, providers.MeterProvider)
		require.False(t, providers.Enabled())
		require.NoError(t, providers.Shutdown(context.Background()))
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	_, setupError := telemetry.Setup(telemetry.Configuration{Exporter: "jaeger"})
	require.Error(t, setupError)
	require.Contains(t, setupError.Error(), "jaeger")
}

func TestStdoutExporterWritesSpansAndMetricsOnShutdown(t *testing.T) {
	buffer := &bytes.Buffer{}
	providers, setupError := telemetry.Setup(telemetry.Configuration{
		ServiceName:    "emanate-test",
		ServiceVersion: "1.0.0",
		Exporter:       telemetry.ExporterStdout,
		Writer:         buffer,
	})
	require.NoError(t, setupError)
	require.True(t, providers.Enabled())

	_, span := providers.TracerProvider.Tracer("test").Start(context.Background(), "archive-span")
	span.End()

	counter, counterError := providers.MeterProvider.Meter("test").Int64Counter("archive_total")
	require.NoError(t, counterError)
	counter.Add(context.Background(), 1)

	require.NoError(t, providers.Shutdown(context.Background()))
	require.Contains(t, buffer.String(), "archive-span")
	require.Contains(t, buffer.String(), "archive_total")
	require.Contains(t, buffer.String(), "emanate-test")
}
