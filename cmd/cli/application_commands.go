package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/telemetry"
	"github.com/tyemirov/emanator/internal/utils"
	flagutils "github.com/tyemirov/emanator/internal/utils/flags"
	"github.com/tyemirov/emanator/pkg/taskrunner"
)

const (
	runCommandUseConstant                               = "run [task...]"
	runCommandShortDescriptionConstant                  = "Run the packaging pipeline or the named tasks"
	runCommandLongDescriptionConstant                   = "run executes the named tasks after all of their prerequisites. Without arguments it runs every task reachable from the declared dependency edges, which builds the default pipeline."
	planCommandUseConstant                              = "plan [task...]"
	planCommandShortDescriptionConstant                 = "Print the execution plan without running it"
	planCommandLongDescriptionConstant                  = "plan prints the order in which run would execute the named tasks, one identifier per line."
	tasksCommandUseConstant                             = "tasks"
	tasksCommandShortDescriptionConstant                = "List registered tasks and their prerequisites"
	tasksCommandLongDescriptionConstant                 = "tasks lists every registered task in registration order with the prerequisites it declares."
	versionCommandUseNameConstant                       = "version"
	versionCommandShortDescriptionConstant              = "Print the emanate version"
	versionCommandLongDescriptionConstant               = "version prints the current emanate release identifier."
	initCommandUseConstant                              = "init [local|user]"
	initCommandShortDescriptionConstant                 = "Write the default configuration file"
	initCommandLongDescriptionConstant                  = "init writes the embedded default configuration to ./config.yaml (local) or $HOME/.emanate/config.yaml (user)."
	initForceFlagNameConstant                           = "force"
	initForceFlagUsageConstant                          = "Overwrite an existing configuration file."
	configurationInitializationScopeLocalConstant       = "local"
	configurationInitializationScopeUserConstant        = "user"
	configurationInitializationUnsupportedScopeTemplate = "unsupported initialization scope %q"
	configurationInitializationExistingFileTemplate     = "configuration file already exists at %s (use --force to overwrite)"
	configurationInitializationDirectoryErrorTemplate   = "unable to ensure configuration directory %s: %w"
	configurationInitializationWriteErrorTemplate       = "unable to write configuration file %s: %w"
	configurationInitializationSuccessMessageConstant   = "configuration file created"
	configurationDirectoryPermissionConstant            = 0o755
	configurationFilePermissionConstant                 = 0o600
	taskListingTemplateConstant                         = "%s <- %s\n"
	runFailedMessageConstant                            = "task run failed"
	runCompletedMessageConstant                         = "task run completed"
	failedTaskFieldConstant                             = "failed_task"
	executedFieldConstant                               = "executed"
	telemetryShutdownErrorTemplateConstant              = "unable to flush telemetry: %w"
	telemetryExportingMessageConstant                   = "telemetry exporting"
	telemetryExporterFieldConstant                      = "exporter"
)

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	runCommand := &cobra.Command{
		Use:   runCommandUseConstant,
		Short: runCommandShortDescriptionConstant,
		Long:  runCommandLongDescriptionConstant,
		RunE:  application.runTasks,
	}
	flagutils.BindExecutionFlags(runCommand, flagutils.ExecutionDefaults{}, flagutils.DefaultExecutionFlagDefinitions())
	cobraCommand.AddCommand(runCommand)

	planCommand := &cobra.Command{
		Use:   planCommandUseConstant,
		Short: planCommandShortDescriptionConstant,
		Long:  planCommandLongDescriptionConstant,
		RunE:  application.printPlan,
	}
	flagutils.BindExecutionFlags(planCommand, flagutils.ExecutionDefaults{}, flagutils.DefaultExecutionFlagDefinitions())
	cobraCommand.AddCommand(planCommand)

	tasksCommand := &cobra.Command{
		Use:   tasksCommandUseConstant,
		Short: tasksCommandShortDescriptionConstant,
		Long:  tasksCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  application.listTasks,
	}
	flagutils.BindExecutionFlags(tasksCommand, flagutils.ExecutionDefaults{}, flagutils.DefaultExecutionFlagDefinitions())
	cobraCommand.AddCommand(tasksCommand)

	versionCommand := &cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescriptionConstant,
		Long:  versionCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	}
	cobraCommand.AddCommand(versionCommand)

	initCommand := &cobra.Command{
		Use:       initCommandUseConstant,
		Short:     initCommandShortDescriptionConstant,
		Long:      initCommandLongDescriptionConstant,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{configurationInitializationScopeLocalConstant, configurationInitializationScopeUserConstant},
		RunE:      application.initializeConfigurationFile,
	}
	initCommand.Flags().Bool(initForceFlagNameConstant, false, initForceFlagUsageConstant)
	cobraCommand.AddCommand(initCommand)
}

func (application *Application) runTasks(command *cobra.Command, arguments []string) (runError error) {
	providers, telemetryError := telemetry.Setup(telemetry.Configuration{
		ServiceName:    applicationNameConstant,
		ServiceVersion: application.versionResolver(command.Context()),
		Exporter:       application.configuration.Common.Telemetry,
		Writer:         command.ErrOrStderr(),
	})
	if telemetryError != nil {
		return telemetryError
	}
	if providers.Enabled() {
		application.logger.Debug(telemetryExportingMessageConstant, zap.String(telemetryExporterFieldConstant, application.configuration.Common.Telemetry))
	}
	defer func() {
		if shutdownError := providers.Shutdown(command.Context()); shutdownError != nil {
			runError = multierr.Append(runError, fmt.Errorf(telemetryShutdownErrorTemplateConstant, shutdownError))
		}
	}()

	pipeline, assemblyError := application.assemblePipeline(command, pipelineOptions{
		progressSink:   application.progressSink(utils.NewFlushingWriter(command.OutOrStdout())),
		tracerProvider: providers.TracerProvider,
		meterProvider:  providers.MeterProvider,
	})
	if assemblyError != nil {
		return assemblyError
	}

	plan, planError := pipeline.plan(arguments)
	if planError != nil {
		return planError
	}

	executor := taskrunner.Resolve(application.executorFactory, pipeline.dependencies, pipeline.sealed.Registry)
	outcome, executionError := executor.Run(command.Context(), plan)
	if executionError != nil {
		failedIdentifier := ""
		if failure, failed := outcome.Failure(); failed {
			failedIdentifier = failure.Identifier
		}
		application.logger.Error(runFailedMessageConstant, zap.String(failedTaskFieldConstant, failedIdentifier), zap.Error(executionError))
		return executionError
	}

	application.logger.Info(runCompletedMessageConstant, zap.Int(executedFieldConstant, outcome.Executed))
	return nil
}

func (application *Application) printPlan(command *cobra.Command, arguments []string) error {
	pipeline, assemblyError := application.assemblePipeline(command, pipelineOptions{})
	if assemblyError != nil {
		return assemblyError
	}

	plan, planError := pipeline.plan(arguments)
	if planError != nil {
		return planError
	}

	for _, identifier := range plan.Identifiers() {
		fmt.Fprintln(command.OutOrStdout(), identifier)
	}
	return nil
}

func (application *Application) listTasks(command *cobra.Command, _ []string) error {
	pipeline, assemblyError := application.assemblePipeline(command, pipelineOptions{})
	if assemblyError != nil {
		return assemblyError
	}

	registry := pipeline.sealed.Registry
	for _, identifier := range registry.Identifiers() {
		descriptor, _ := registry.Lookup(identifier)
		if len(descriptor.DeclaredPrerequisites) == 0 {
			fmt.Fprintln(command.OutOrStdout(), identifier)
			continue
		}
		fmt.Fprintf(command.OutOrStdout(), taskListingTemplateConstant, identifier, strings.Join(descriptor.DeclaredPrerequisites, ", "))
	}
	return nil
}

func (application *Application) initializeConfigurationFile(command *cobra.Command, arguments []string) error {
	scope := configurationInitializationScopeLocalConstant
	if len(arguments) > 0 {
		scope = strings.ToLower(strings.TrimSpace(arguments[0]))
	}

	var directoryPath string
	switch scope {
	case "", configurationInitializationScopeLocalConstant:
		applicationFolder, folderError := application.resolveApplicationFolder(command.Context())
		if folderError != nil {
			return folderError
		}
		directoryPath = applicationFolder
	case configurationInitializationScopeUserConstant:
		homeDirectory, homeError := application.resolveHomeDirectory()
		if homeError != nil {
			return homeError
		}
		directoryPath = filepath.Join(homeDirectory, userConfigurationDirectoryNameConstant)
	default:
		return fmt.Errorf(configurationInitializationUnsupportedScopeTemplate, scope)
	}

	forced, _ := command.Flags().GetBool(initForceFlagNameConstant)
	filePath := filepath.Join(directoryPath, configurationFileNameConstant)

	exists, existsError := afero.Exists(application.fileSystem, filePath)
	if existsError != nil {
		return fmt.Errorf(configurationInitializationWriteErrorTemplate, filePath, existsError)
	}
	if exists && !forced {
		return fmt.Errorf(configurationInitializationExistingFileTemplate, filePath)
	}

	if mkdirError := application.fileSystem.MkdirAll(directoryPath, configurationDirectoryPermissionConstant); mkdirError != nil {
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplate, directoryPath, mkdirError)
	}

	configurationContent, _ := EmbeddedDefaultConfiguration()
	if writeError := afero.WriteFile(application.fileSystem, filePath, configurationContent, configurationFilePermissionConstant); writeError != nil {
		return fmt.Errorf(configurationInitializationWriteErrorTemplate, filePath, writeError)
	}

	application.logger.Info(configurationInitializationSuccessMessageConstant, zap.String(configurationFileFieldConstant, filePath))
	fmt.Fprintln(command.OutOrStdout(), filePath)
	return nil
}
