package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel enumerates supported diagnostic log levels.
type LogLevel string

// LogFormat enumerates supported log encodings.
type LogFormat string

// Supported log levels.
const (
	LogLevelDebug LogLevel = LogLevel("debug")
	LogLevelInfo  LogLevel = LogLevel("info")
	LogLevelWarn  LogLevel = LogLevel("warn")
	LogLevelError LogLevel = LogLevel("error")
)

// Supported log formats.
const (
	LogFormatStructured LogFormat = LogFormat("structured")
	LogFormatConsole    LogFormat = LogFormat("console")
)

const (
	unsupportedLogLevelErrorTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatErrorTemplateConstant = "unsupported log format %q"
	consoleTimeLayoutConstant                 = "15:04:05"
	structuredTimeKeyConstant                 = "ts"
	structuredMessageKeyConstant              = "msg"
	structuredLevelKeyConstant                = "level"
	structuredCallerKeyConstant               = "caller"
)

// LoggerOutputs bundles the diagnostic logger with the human-facing console logger.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers from configuration values.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() LoggerFactory {
	return LoggerFactory{}
}

// CreateLogger builds a diagnostic logger for the requested level and format.
func (factory LoggerFactory) CreateLogger(logLevel LogLevel, logFormat LogFormat) (*zap.Logger, error) {
	outputs, creationError := factory.CreateLoggerOutputs(logLevel, logFormat)
	if creationError != nil {
		return nil, creationError
	}
	return outputs.DiagnosticLogger, nil
}

// CreateLoggerOutputs builds the diagnostic and console loggers. Structured format
// emits JSON diagnostics and silences the console logger; console format emits
// human-readable lines for both.
func (factory LoggerFactory) CreateLoggerOutputs(logLevel LogLevel, logFormat LogFormat) (LoggerOutputs, error) {
	zapLevel, levelError := parseLogLevel(logLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	normalizedFormat := LogFormat(strings.ToLower(strings.TrimSpace(string(logFormat))))
	switch normalizedFormat {
	case LogFormatStructured:
		diagnosticLogger := buildLogger(zapcore.NewJSONEncoder(structuredEncoderConfig()), zapLevel)
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: zap.NewNop()}, nil
	case LogFormatConsole:
		diagnosticLogger := buildLogger(zapcore.NewConsoleEncoder(consoleEncoderConfig()), zapLevel)
		consoleLogger := buildLogger(zapcore.NewConsoleEncoder(consoleEncoderConfig()), zapLevel)
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: consoleLogger}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatErrorTemplateConstant, logFormat)
	}
}

func parseLogLevel(logLevel LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(logLevel)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf(unsupportedLogLevelErrorTemplateConstant, logLevel)
	}
}

func buildLogger(encoder zapcore.Encoder, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	return zap.New(core)
}

func structuredEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = structuredTimeKeyConstant
	encoderConfig.MessageKey = structuredMessageKeyConstant
	encoderConfig.LevelKey = structuredLevelKeyConstant
	encoderConfig.CallerKey = structuredCallerKeyConstant
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant)
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.CallerKey = ""
	return encoderConfig
}
