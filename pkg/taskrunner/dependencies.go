package taskrunner

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/execshell"
	"github.com/tyemirov/emanator/internal/tasks"
)

// DependenciesConfig captures providers required to build run dependencies.
type DependenciesConfig struct {
	LoggerProvider               func() *zap.Logger
	HumanReadableLoggingProvider func() bool
	CommandRunner                execshell.CommandRunner
	FileSystem                   afero.Fs
	TracerProvider               trace.TracerProvider
	MeterProvider                metric.MeterProvider
}

// DependenciesOptions allows per-command overrides when resolving dependencies.
type DependenciesOptions struct {
	Command          *cobra.Command
	Output           io.Writer
	Errors           io.Writer
	ProgressSink     tasks.ProgressSink
	StreamErrorsFail bool
	DisableSummary   bool
}

// Dependencies are the collaborators shared by the packaging toolkit and the runner.
type Dependencies struct {
	Logger               *zap.Logger
	Executor             *execshell.ShellExecutor
	FileSystem           afero.Fs
	Output               io.Writer
	Errors               io.Writer
	HumanReadableLogging bool
	ProgressSink         tasks.ProgressSink
	TracerProvider       trace.TracerProvider
	MeterProvider        metric.MeterProvider
	StreamErrorsFail     bool
	DisableSummary       bool
}

// BuildDependencies resolves the logger, shell executor, filesystem and writers for a run.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) (Dependencies, error) {
	logger := resolveLogger(config.LoggerProvider)
	humanReadable := false
	if config.HumanReadableLoggingProvider != nil {
		humanReadable = config.HumanReadableLoggingProvider()
	}

	commandRunner := config.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, humanReadable)
	if executorError != nil {
		return Dependencies{}, fmt.Errorf("taskrunner.dependencies.shell_executor: %w", executorError)
	}

	fileSystem := config.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}

	return Dependencies{
		Logger:               logger,
		Executor:             shellExecutor,
		FileSystem:           fileSystem,
		Output:               resolveWriter(options.Output, options.Command, true),
		Errors:               resolveWriter(options.Errors, options.Command, false),
		HumanReadableLogging: humanReadable,
		ProgressSink:         options.ProgressSink,
		TracerProvider:       config.TracerProvider,
		MeterProvider:        config.MeterProvider,
		StreamErrorsFail:     options.StreamErrorsFail,
		DisableSummary:       options.DisableSummary,
	}, nil
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveWriter(provided io.Writer, command *cobra.Command, useStdout bool) io.Writer {
	if provided != nil {
		return provided
	}
	if command != nil {
		if useStdout {
			if writer := command.OutOrStdout(); writer != nil && writer != io.Discard {
				return writer
			}
		} else {
			if writer := command.ErrOrStderr(); writer != nil && writer != io.Discard {
				return writer
			}
		}
	}
	if useStdout {
		return os.Stdout
	}
	return os.Stderr
}
