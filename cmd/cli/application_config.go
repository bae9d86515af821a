package cli

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/tyemirov/emanator/internal/packaging"
	"github.com/tyemirov/emanator/internal/tasks"
)

const (
	embeddedConfigurationTypeConstant      = "yaml"
	commandTaskNameMissingTemplateConstant = "pipeline.tasks[%d] requires a name"
	commandDefinitionErrorTemplateConstant = "pipeline command %s: %w"
	declaredTaskErrorTemplateConstant      = "pipeline task %s: %w"
	pipelineStageErrorTemplateConstant     = "pipeline.%s: %w"
	applicationStageNameConstant           = "application"
	platformStageNameConstant              = "platform"
)

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the configuration compiled into the binary and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), embeddedDefaultConfiguration...), embeddedConfigurationTypeConstant
}

// ApplicationConfiguration describes the persisted configuration for emanate.
type ApplicationConfiguration struct {
	Common            ApplicationCommonConfiguration `mapstructure:"common"`
	packaging.Profile `mapstructure:",squash"`
	Pipeline          ApplicationPipelineConfiguration   `mapstructure:"pipeline"`
	Scheduling        ApplicationSchedulingConfiguration `mapstructure:"scheduling"`
}

// ApplicationCommonConfiguration stores logging and telemetry settings shared by every command.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Telemetry string `mapstructure:"telemetry"`
}

// ApplicationPipelineConfiguration extends the built-in packaging pipeline.
type ApplicationPipelineConfiguration struct {
	Commands    map[string]ApplicationCommandConfiguration `mapstructure:"commands"`
	Application []any                                      `mapstructure:"application"`
	Platform    []any                                      `mapstructure:"platform"`
	Tasks       []ApplicationTaskConfiguration             `mapstructure:"tasks"`
}

// ApplicationCommandConfiguration is a shell command run as a task body.
type ApplicationCommandConfiguration struct {
	Command []string `mapstructure:"command"`
	Folder  string   `mapstructure:"folder"`
}

// ApplicationTaskConfiguration declares a user task with explicit prerequisites.
type ApplicationTaskConfiguration struct {
	Name    string   `mapstructure:"name"`
	After   []string `mapstructure:"after"`
	Command []string `mapstructure:"command"`
	Folder  string   `mapstructure:"folder"`
}

// ApplicationSchedulingConfiguration controls plan sweeping and stream error handling.
type ApplicationSchedulingConfiguration struct {
	Sweep            string `mapstructure:"sweep"`
	StreamErrorsFail bool   `mapstructure:"stream_errors_fail"`
}

// applicationStage parses the configured application entries.
func (configuration ApplicationPipelineConfiguration) applicationStage() (tasks.PipelineDescription, error) {
	return parseStage(applicationStageNameConstant, configuration.Application)
}

// platformStage parses the configured platform entries.
func (configuration ApplicationPipelineConfiguration) platformStage() (tasks.PipelineDescription, error) {
	return parseStage(platformStageNameConstant, configuration.Platform)
}

func parseStage(stageName string, values []any) (tasks.PipelineDescription, error) {
	description, parseError := tasks.ParsePipelineDescription(values)
	if parseError != nil {
		return nil, fmt.Errorf(pipelineStageErrorTemplateConstant, stageName, parseError)
	}
	return description, nil
}

// commandBodies builds a body for every named command, keyed by the lowercased name.
func (configuration ApplicationPipelineConfiguration) commandBodies(toolkit *packaging.Toolkit) (map[string]tasks.Body, error) {
	bodies := make(map[string]tasks.Body, len(configuration.Commands))
	for name, definition := range configuration.Commands {
		trimmedName := strings.TrimSpace(name)
		body, bodyError := toolkit.CommandBody(definition.Command, definition.Folder)
		if bodyError != nil {
			return nil, fmt.Errorf(commandDefinitionErrorTemplateConstant, trimmedName, bodyError)
		}
		bodies[strings.ToLower(trimmedName)] = body
	}
	return bodies, nil
}

// declareTasks registers the configured user tasks in order. A task without explicit
// prerequisites runs after the previously declared task, and the first one after done.
func (configuration ApplicationPipelineConfiguration) declareTasks(builder *tasks.PipelineBuilder, toolkit *packaging.Toolkit) error {
	previous := tasks.DoneTaskIdentifier
	for index, task := range configuration.Tasks {
		name := strings.TrimSpace(task.Name)
		if len(name) == 0 {
			return fmt.Errorf(commandTaskNameMissingTemplateConstant, index)
		}

		body, bodyError := toolkit.CommandBody(task.Command, task.Folder)
		if bodyError != nil {
			return fmt.Errorf(declaredTaskErrorTemplateConstant, name, bodyError)
		}

		prerequisites := make([]string, 0, len(task.After))
		for _, prerequisite := range task.After {
			if trimmed := strings.TrimSpace(prerequisite); len(trimmed) > 0 {
				prerequisites = append(prerequisites, trimmed)
			}
		}
		if len(prerequisites) == 0 {
			prerequisites = []string{previous}
		}

		if _, declareError := builder.Declare(name, prerequisites, body); declareError != nil {
			return fmt.Errorf(declaredTaskErrorTemplateConstant, name, declareError)
		}
		previous = name
	}
	return nil
}
