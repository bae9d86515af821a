package utils_test

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/utils"
)

// captureStandardError swaps os.Stderr while produce builds and uses loggers.
func captureStandardError(t *testing.T, produce func()) string {
	t.Helper()

	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(t, pipeError)

	originalStandardError := os.Stderr
	os.Stderr = pipeWriter
	produce()
	os.Stderr = originalStandardError

	require.NoError(t, pipeWriter.Close())
	captured, readError := io.ReadAll(pipeReader)
	require.NoError(t, readError)
	require.NoError(t, pipeReader.Close())
	return string(captured)
}

func TestLoggerFactoryStructuredOutputsAtDefaultLevel(t *testing.T) {
	var creationError error
	captured := captureStandardError(t, func() {
		var outputs utils.LoggerOutputs
		outputs, creationError = utils.NewLoggerFactory().CreateLoggerOutputs(utils.LogLevelError, utils.LogFormatStructured)
		if creationError != nil {
			return
		}
		outputs.DiagnosticLogger.Info("pipeline assembled")
		outputs.DiagnosticLogger.Error("task failed", zap.String("task", "npm-install"))
		outputs.ConsoleLogger.Error("npm-install... failed")
	})
	require.NoError(t, creationError)

	lines := strings.Split(strings.TrimSpace(captured), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "task failed", entry["msg"])
	require.Equal(t, "error", entry["level"])
	require.Equal(t, "npm-install", entry["task"])
	require.Contains(t, entry, "ts")
}

func TestLoggerFactoryConsoleOutputsNormalizeValues(t *testing.T) {
	var creationError error
	captured := captureStandardError(t, func() {
		var outputs utils.LoggerOutputs
		outputs, creationError = utils.NewLoggerFactory().CreateLoggerOutputs(utils.LogLevel(" Info "), utils.LogFormat("CONSOLE"))
		if creationError != nil {
			return
		}
		outputs.DiagnosticLogger.Debug("resolved version")
		outputs.DiagnosticLogger.Info("pipeline assembled")
		outputs.ConsoleLogger.Info("archive written")
	})
	require.NoError(t, creationError)

	require.NotContains(t, captured, "resolved version")
	require.Contains(t, captured, "INFO")
	require.Contains(t, captured, "pipeline assembled")
	require.Contains(t, captured, "archive written")

	firstLine := strings.SplitN(strings.TrimSpace(captured), "\n", 2)[0]
	require.False(t, json.Valid([]byte(firstLine)))
}

func TestLoggerFactoryRejectsUnsupportedValues(t *testing.T) {
	testCases := []struct {
		name      string
		logLevel  utils.LogLevel
		logFormat utils.LogFormat
		expected  string
	}{
		{name: "level", logLevel: utils.LogLevel("verbose"), logFormat: utils.LogFormatStructured, expected: "verbose"},
		{name: "format", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormat("xml"), expected: "xml"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			logger, creationError := utils.NewLoggerFactory().CreateLogger(testCase.logLevel, testCase.logFormat)
			require.ErrorContains(t, creationError, testCase.expected)
			require.Nil(t, logger)
		})
	}
}
