package flags

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/emanator/internal/utils"
)

func newFlaggedCommand() *cobra.Command {
	command := &cobra.Command{Use: "run", RunE: func(*cobra.Command, []string) error { return nil }}
	BindExecutionFlags(command, ExecutionDefaults{}, DefaultExecutionFlagDefinitions())
	return command
}

func TestCollectExecutionFlagsParsesToggles(t *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expected  utils.ExecutionFlags
	}{
		{name: "defaults", arguments: nil, expected: utils.ExecutionFlags{}},
		{name: "bare_toggles", arguments: []string{"--force", "--release", "--branch", " develop "}, expected: utils.ExecutionFlags{Force: true, Release: true, Branch: "develop"}},
		{name: "explicit_values", arguments: []string{"--fast=yes", "--archive=on", "--dry-run=off"}, expected: utils.ExecutionFlags{Fast: true, Archive: true}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			command := newFlaggedCommand()
			require.NoError(t, command.ParseFlags(testCase.arguments))
			require.Equal(t, testCase.expected, CollectExecutionFlags(command))
		})
	}
}

func TestToggleRejectsUnknownValues(t *testing.T) {
	command := newFlaggedCommand()
	require.Error(t, command.ParseFlags([]string{"--force=maybe"}))
}

func TestBoolFlagReportsMissingFlag(t *testing.T) {
	command := &cobra.Command{Use: "plain"}
	_, _, err := BoolFlag(command, ForceFlagName)
	require.ErrorIs(t, err, ErrFlagNotDefined)
}

func TestResolveExecutionFlagsPrefersContext(t *testing.T) {
	command := newFlaggedCommand()
	require.NoError(t, command.ParseFlags([]string{"--force"}))

	accessor := utils.NewCommandContextAccessor()
	command.SetContext(accessor.WithExecutionFlags(context.Background(), utils.ExecutionFlags{Fast: true}))

	require.Equal(t, utils.ExecutionFlags{Fast: true}, ResolveExecutionFlags(command))
}
