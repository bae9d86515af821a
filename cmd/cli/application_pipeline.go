package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/packaging"
	"github.com/tyemirov/emanator/internal/tasks"
	"github.com/tyemirov/emanator/internal/utils"
	flagutils "github.com/tyemirov/emanator/internal/utils/flags"
	"github.com/tyemirov/emanator/internal/version"
	"github.com/tyemirov/emanator/pkg/taskrunner"
)

const (
	columnsEnvironmentVariableConstant    = "COLUMNS"
	pipelineAssemblyErrorTemplateConstant = "unable to assemble pipeline: %w"
	pipelineAssembledMessageConstant      = "pipeline assembled"
	registeredTasksFieldConstant          = "registered_tasks"
	splicePointFieldConstant              = "splice_point"
	applicationFolderFieldConstant        = "application_folder"
	identifierDefaultedMessageConstant    = "project identifier defaulted to folder name"
	identifierFieldConstant               = "ident"
)

// pipelineOptions carries the per-command collaborators of an assembled pipeline.
type pipelineOptions struct {
	progressSink   tasks.ProgressSink
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// assembledPipeline is a sealed registry ready for scheduling.
type assembledPipeline struct {
	dependencies taskrunner.Dependencies
	toolkit      *packaging.Toolkit
	sealed       tasks.SealedPipeline
	sweepPolicy  tasks.SweepPolicy
}

// plan linearizes requested identifiers, sweeping the registry when none are given.
func (pipeline assembledPipeline) plan(requested []string) (tasks.Plan, error) {
	return tasks.Linearize(pipeline.sealed.Registry, requested, pipeline.sweepPolicy)
}

// assemblePipeline builds the toolkit and compiles the built-in and configured stages.
func (application *Application) assemblePipeline(command *cobra.Command, options pipelineOptions) (assembledPipeline, error) {
	sweepPolicy, sweepError := tasks.ParseSweepPolicy(application.configuration.Scheduling.Sweep)
	if sweepError != nil {
		return assembledPipeline{}, fmt.Errorf(pipelineAssemblyErrorTemplateConstant, sweepError)
	}

	dependencies, dependenciesError := taskrunner.BuildDependencies(
		taskrunner.DependenciesConfig{
			LoggerProvider:               func() *zap.Logger { return application.logger },
			HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
			CommandRunner:                application.commandRunner,
			FileSystem:                   application.fileSystem,
			TracerProvider:               options.tracerProvider,
			MeterProvider:                options.meterProvider,
		},
		taskrunner.DependenciesOptions{
			Command:          command,
			Output:           utils.NewFlushingWriter(command.OutOrStdout()),
			Errors:           utils.NewFlushingWriter(command.ErrOrStderr()),
			ProgressSink:     options.progressSink,
			StreamErrorsFail: application.configuration.Scheduling.StreamErrorsFail,
		},
	)
	if dependenciesError != nil {
		return assembledPipeline{}, fmt.Errorf(pipelineAssemblyErrorTemplateConstant, dependenciesError)
	}

	applicationFolder, folderError := application.resolveApplicationFolder(command.Context())
	if folderError != nil {
		return assembledPipeline{}, fmt.Errorf(pipelineAssemblyErrorTemplateConstant, folderError)
	}
	homeDirectory, homeError := application.resolveHomeDirectory()
	if homeError != nil {
		return assembledPipeline{}, fmt.Errorf(pipelineAssemblyErrorTemplateConstant, homeError)
	}

	profile := application.configuration.Profile
	if len(strings.TrimSpace(profile.Project.Identifier)) == 0 {
		profile.Project.Identifier = filepath.Base(applicationFolder)
		dependencies.Logger.Debug(identifierDefaultedMessageConstant, zap.String(identifierFieldConstant, profile.Project.Identifier))
	}

	detector, detectorError := version.NewDetector(version.Dependencies{
		GitExecutor:      dependencies.Executor,
		WorkingDirectory: applicationFolder,
	})
	if detectorError != nil {
		return assembledPipeline{}, fmt.Errorf(pipelineAssemblyErrorTemplateConstant, detectorError)
	}

	toolkit, toolkitError := packaging.NewToolkit(packaging.ToolkitConfiguration{
		Profile:           profile,
		Host:              application.hostPlatform,
		Flags:             flagutils.ResolveExecutionFlags(command),
		Executor:          dependencies.Executor,
		Logger:            dependencies.Logger,
		FileSystem:        dependencies.FileSystem,
		ApplicationFolder: applicationFolder,
		HomeDirectory:     homeDirectory,
		Output:            dependencies.Output,
		LookupBinary:      application.lookupBinary,
		VersionFallback:   detector.RepositoryVersion,
	})
	if toolkitError != nil {
		return assembledPipeline{}, fmt.Errorf(pipelineAssemblyErrorTemplateConstant, toolkitError)
	}

	sealed, sealError := application.compilePipeline(toolkit)
	if sealError != nil {
		return assembledPipeline{}, fmt.Errorf(pipelineAssemblyErrorTemplateConstant, sealError)
	}

	dependencies.Logger.Debug(pipelineAssembledMessageConstant,
		zap.String(applicationFolderFieldConstant, applicationFolder),
		zap.String(splicePointFieldConstant, sealed.SplicePoint),
		zap.Int(registeredTasksFieldConstant, sealed.Registry.Len()),
	)

	return assembledPipeline{
		dependencies: dependencies,
		toolkit:      toolkit,
		sealed:       sealed,
		sweepPolicy:  sweepPolicy,
	}, nil
}

// compilePipeline composes the built-in root stage, the configured application stage,
// the declared tasks and the platform stage, then seals the registry.
func (application *Application) compilePipeline(toolkit *packaging.Toolkit) (tasks.SealedPipeline, error) {
	pipelineConfiguration := application.configuration.Pipeline

	commandBodies, commandError := pipelineConfiguration.commandBodies(toolkit)
	if commandError != nil {
		return tasks.SealedPipeline{}, commandError
	}
	resolver := tasks.BodyResolverFunc(func(identifier string) (tasks.Body, bool) {
		if body, found := commandBodies[strings.ToLower(identifier)]; found {
			return body, true
		}
		return toolkit.ResolveBody(identifier)
	})

	applicationStage, applicationError := pipelineConfiguration.applicationStage()
	if applicationError != nil {
		return tasks.SealedPipeline{}, applicationError
	}
	platformStage, platformError := pipelineConfiguration.platformStage()
	if platformError != nil {
		return tasks.SealedPipeline{}, platformError
	}

	builder := tasks.NewPipelineBuilder(tasks.NewRegistry(), resolver)
	if rootError := builder.Root(toolkit.RootPipeline()); rootError != nil {
		return tasks.SealedPipeline{}, rootError
	}
	if stageError := builder.Application(applicationStage); stageError != nil {
		return tasks.SealedPipeline{}, stageError
	}
	if stageError := builder.Platform(append(toolkit.PlatformPipeline(), platformStage...)); stageError != nil {
		return tasks.SealedPipeline{}, stageError
	}
	if declareError := pipelineConfiguration.declareTasks(builder, toolkit); declareError != nil {
		return tasks.SealedPipeline{}, declareError
	}
	if standaloneError := toolkit.RegisterStandaloneTasks(builder.Registry()); standaloneError != nil {
		return tasks.SealedPipeline{}, standaloneError
	}
	return builder.Seal()
}

// progressSink reports to the console and to the diagnostic logger.
func (application *Application) progressSink(writer io.Writer) tasks.ProgressSink {
	return tasks.MultiProgressSink{
		tasks.NewConsoleProgressSink(writer, terminalWidth(writer)),
		tasks.NewLoggerProgressSink(application.logger),
	}
}

// terminalWidth returns the column count for terminals, zero for anything else.
func terminalWidth(writer io.Writer) int {
	file, isFile := writer.(*os.File)
	if !isFile {
		return 0
	}
	if !isatty.IsTerminal(file.Fd()) && !isatty.IsCygwinTerminal(file.Fd()) {
		return 0
	}
	columns, parseError := strconv.Atoi(strings.TrimSpace(os.Getenv(columnsEnvironmentVariableConstant)))
	if parseError != nil || columns <= 0 {
		return 0
	}
	return columns
}
