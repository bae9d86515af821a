package taskrunner

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/execshell"
)

type stubCommandRunner struct {
	commands []execshell.ShellCommand
}

func (runner *stubCommandRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.commands = append(runner.commands, command)
	return execshell.ExecutionResult{}, nil
}

func TestBuildDependenciesUsesProvidedCollaborators(t *testing.T) {
	runner := &stubCommandRunner{}
	fileSystem := afero.NewMemMapFs()
	output := &bytes.Buffer{}
	errorsBuffer := &bytes.Buffer{}

	result, err := BuildDependencies(
		DependenciesConfig{
			LoggerProvider:               func() *zap.Logger { return zap.NewNop() },
			HumanReadableLoggingProvider: func() bool { return true },
			CommandRunner:                runner,
			FileSystem:                   fileSystem,
		},
		DependenciesOptions{Output: output, Errors: errorsBuffer, StreamErrorsFail: true},
	)
	require.NoError(t, err)
	require.Same(t, fileSystem, result.FileSystem)
	require.Same(t, output, result.Output)
	require.Same(t, errorsBuffer, result.Errors)
	require.True(t, result.HumanReadableLogging)
	require.True(t, result.StreamErrorsFail)

	_, executeError := result.Executor.ExecuteGit(context.Background(), execshell.CommandDetails{Arguments: []string{"status"}})
	require.NoError(t, executeError)
	require.Len(t, runner.commands, 1)
	require.Equal(t, execshell.CommandGit, runner.commands[0].Name)
}

func TestBuildDependenciesDefaults(t *testing.T) {
	result, err := BuildDependencies(DependenciesConfig{}, DependenciesOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Logger)
	require.NotNil(t, result.Executor)
	require.IsType(t, &afero.OsFs{}, result.FileSystem)
	require.Equal(t, os.Stdout, result.Output)
	require.Equal(t, os.Stderr, result.Errors)
}

func TestBuildDependenciesPrefersCommandWriters(t *testing.T) {
	command := &cobra.Command{}
	output := &bytes.Buffer{}
	errorsBuffer := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(errorsBuffer)

	result, err := BuildDependencies(DependenciesConfig{}, DependenciesOptions{Command: command})
	require.NoError(t, err)
	require.Same(t, output, result.Output)
	require.Same(t, errorsBuffer, result.Errors)
}
