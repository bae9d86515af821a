package version_test

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/emanator/internal/execshell"
	"github.com/tyemirov/emanator/internal/version"
)

type stubBuildInfoProvider struct {
	info      *debug.BuildInfo
	available bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	if !provider.available {
		return nil, false
	}
	return provider.info, true
}

type stubGitExecutor struct {
	testInstance *testing.T
	commands     []stubGitCommand
}

type stubGitCommand struct {
	expectedArguments []string
	output            string
	executionError    error
}

func (executor *stubGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.testInstance.Helper()
	require.Greater(executor.testInstance, len(executor.commands), 0)

	executedArguments := append([]string{}, details.Arguments...)
	command := executor.commands[0]
	executor.commands = executor.commands[1:]

	require.Equal(executor.testInstance, command.expectedArguments, executedArguments)
	return execshell.ExecutionResult{StandardOutput: command.output}, command.executionError
}

func TestVersionUsesBuildInfoWhenAvailable(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true}
	detector, creationError := version.NewDetector(version.Dependencies{BuildInfoProvider: provider})
	require.NoError(t, creationError)

	versionString := detector.Version(context.Background())
	require.Equal(t, "v1.2.3", versionString)
}

func TestVersionFallsBackToExactDescribe(t *testing.T) {
	executor := &stubGitExecutor{
		testInstance: t,
		commands: []stubGitCommand{
			{expectedArguments: []string{"rev-parse", "--show-toplevel"}, output: "/workspace"},
			{expectedArguments: []string{"describe", "--tags", "--exact-match"}, output: "v0.9.0"},
		},
	}
	detector, creationError := version.NewDetector(version.Dependencies{
		BuildInfoProvider: stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "devel"}}, available: true},
		GitExecutor:       executor,
	})
	require.NoError(t, creationError)

	versionString := detector.Version(context.Background())
	require.Equal(t, "v0.9.0", versionString)
	require.Len(t, executor.commands, 0)
}

func TestVersionUsesLongDescribeWhenExactMissing(t *testing.T) {
	executor := &stubGitExecutor{
		testInstance: t,
		commands: []stubGitCommand{
			{expectedArguments: []string{"rev-parse", "--show-toplevel"}, output: "/workspace"},
			{expectedArguments: []string{"describe", "--tags", "--exact-match"}, executionError: errors.New("not tagged")},
			{expectedArguments: []string{"describe", "--tags", "--long", "--dirty"}, output: "v0.9.0-1-gabcdef"},
		},
	}
	detector, creationError := version.NewDetector(version.Dependencies{
		BuildInfoProvider: stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "devel"}}, available: true},
		GitExecutor:       executor,
	})
	require.NoError(t, creationError)

	versionString := detector.Version(context.Background())
	require.Equal(t, "v0.9.0-1-gabcdef", versionString)
}

func TestVersionReturnsUnknownWhenAllSourcesFail(t *testing.T) {
	executor := &stubGitExecutor{
		testInstance: t,
		commands: []stubGitCommand{
			{expectedArguments: []string{"rev-parse", "--show-toplevel"}, executionError: errors.New("failure")},
			{expectedArguments: []string{"describe", "--tags", "--exact-match"}, executionError: errors.New("failure")},
			{expectedArguments: []string{"describe", "--tags", "--long", "--dirty"}, executionError: errors.New("failure")},
		},
	}
	detector, creationError := version.NewDetector(version.Dependencies{
		BuildInfoProvider: stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "devel"}}, available: true},
		GitExecutor:       executor,
	})
	require.NoError(t, creationError)

	versionString := detector.Version(context.Background())
	require.Equal(t, "unknown", versionString)
}

func TestVersionIgnoresParenthesizedDevelBuild(t *testing.T) {
	executor := &stubGitExecutor{
		testInstance: t,
		commands: []stubGitCommand{
			{expectedArguments: []string{"rev-parse", "--show-toplevel"}, output: "/workspace"},
			{expectedArguments: []string{"describe", "--tags", "--exact-match"}, output: "v2.0.0"},
		},
	}
	detector, creationError := version.NewDetector(version.Dependencies{
		BuildInfoProvider: stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, available: true},
		GitExecutor:       executor,
		WorkingDirectory:  "/workspace/emanate",
	})
	require.NoError(t, creationError)

	require.Equal(t, "v2.0.0", detector.Version(context.Background()))
}

func TestRepositoryVersionStripsPrefix(t *testing.T) {
	testCases := []struct {
		name     string
		commands []stubGitCommand
		expected string
	}{
		{
			name: "tagged",
			commands: []stubGitCommand{
				{expectedArguments: []string{"rev-parse", "--show-toplevel"}, output: "/srv/app"},
				{expectedArguments: []string{"describe", "--tags", "--abbrev=0"}, output: "v3.4.5\n"},
			},
			expected: "3.4.5",
		},
		{
			name: "untagged",
			commands: []stubGitCommand{
				{expectedArguments: []string{"rev-parse", "--show-toplevel"}, executionError: errors.New("not a repository")},
				{expectedArguments: []string{"describe", "--tags", "--abbrev=0"}, executionError: errors.New("no names found")},
			},
			expected: "",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			executor := &stubGitExecutor{testInstance: t, commands: testCase.commands}
			detector, creationError := version.NewDetector(version.Dependencies{GitExecutor: executor, WorkingDirectory: "/tmp"})
			require.NoError(t, creationError)

			require.Equal(t, testCase.expected, detector.RepositoryVersion(context.Background(), "/srv/app/src"))
			require.Empty(t, executor.commands)
		})
	}
}

var _ version.GitExecutor = (*stubGitExecutor)(nil)
