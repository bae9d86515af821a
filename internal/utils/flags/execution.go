// Package flags provides helpers for binding standardized execution flags to Cobra commands.
package flags

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// ForceFlagName re-downloads artifacts that already exist locally.
	ForceFlagName = "force"
	// ForceFlagUsage describes the force flag.
	ForceFlagUsage = "Download dependencies even when cached copies exist"
	// FastFlagName skips unpacking of cached archives.
	FastFlagName = "fast"
	// FastFlagUsage describes the fast flag.
	FastFlagUsage = "Skip unpacking of downloaded archives"
	// DryRunFlagName prints the plan without executing task bodies.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the dry-run flag.
	DryRunFlagUsage = "Print the execution plan without running tasks"
	// ReleaseFlagName enables release-only tasks such as cloning from git.
	ReleaseFlagName = "release"
	// ReleaseFlagUsage describes the release flag.
	ReleaseFlagUsage = "Build a release from a fresh clone of the repository"
	// ArchiveFlagName enables the archive platform task.
	ArchiveFlagName = "archive"
	// ArchiveFlagUsage describes the archive flag.
	ArchiveFlagUsage = "Produce a zip archive of the packaged application"
	// BranchFlagName selects the branch cloned for release builds.
	BranchFlagName = "branch"
	// BranchFlagUsage describes the branch flag.
	BranchFlagUsage = "Git branch to clone for release builds"

	toggleNoOptionDefaultValueConstant = "true"
	toggleTypeNameConstant             = "toggle"
	toggleParseErrorTemplateConstant   = "invalid toggle value %q"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	Force   bool
	Fast    bool
	DryRun  bool
	Release bool
	Archive bool
	Branch  string
}

// ExecutionFlagDefinition captures a single flag's configuration.
type ExecutionFlagDefinition struct {
	Name      string
	Usage     string
	Shorthand string
	Enabled   bool
}

// ExecutionFlagDefinitions groups execution flag definitions.
type ExecutionFlagDefinitions struct {
	Force   ExecutionFlagDefinition
	Fast    ExecutionFlagDefinition
	DryRun  ExecutionFlagDefinition
	Release ExecutionFlagDefinition
	Archive ExecutionFlagDefinition
	Branch  ExecutionFlagDefinition
}

// DefaultExecutionFlagDefinitions enables every packaging flag under its standard name.
func DefaultExecutionFlagDefinitions() ExecutionFlagDefinitions {
	return ExecutionFlagDefinitions{
		Force:   ExecutionFlagDefinition{Name: ForceFlagName, Usage: ForceFlagUsage, Enabled: true},
		Fast:    ExecutionFlagDefinition{Name: FastFlagName, Usage: FastFlagUsage, Enabled: true},
		DryRun:  ExecutionFlagDefinition{Name: DryRunFlagName, Usage: DryRunFlagUsage, Enabled: true},
		Release: ExecutionFlagDefinition{Name: ReleaseFlagName, Usage: ReleaseFlagUsage, Enabled: true},
		Archive: ExecutionFlagDefinition{Name: ArchiveFlagName, Usage: ArchiveFlagUsage, Enabled: true},
		Branch:  ExecutionFlagDefinition{Name: BranchFlagName, Usage: BranchFlagUsage, Enabled: true},
	}
}

// BindExecutionFlags attaches the packaging flags to the provided command's local flag set.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults, definitions ExecutionFlagDefinitions) {
	if command == nil {
		return
	}

	flagSet := command.Flags()

	bindToggleFlag(flagSet, definitions.Force, defaults.Force)
	bindToggleFlag(flagSet, definitions.Fast, defaults.Fast)
	bindToggleFlag(flagSet, definitions.DryRun, defaults.DryRun)
	bindToggleFlag(flagSet, definitions.Release, defaults.Release)
	bindToggleFlag(flagSet, definitions.Archive, defaults.Archive)

	if definitions.Branch.Enabled && len(definitions.Branch.Name) > 0 && flagSet.Lookup(definitions.Branch.Name) == nil {
		flagSet.StringP(definitions.Branch.Name, definitions.Branch.Shorthand, defaults.Branch, definitions.Branch.Usage)
	}
}

func bindToggleFlag(flagSet *pflag.FlagSet, definition ExecutionFlagDefinition, defaultValue bool) {
	if flagSet == nil {
		return
	}
	if !definition.Enabled {
		return
	}
	if len(definition.Name) == 0 {
		return
	}

	AddToggleFlag(flagSet, nil, definition.Name, definition.Shorthand, defaultValue, definition.Usage)
}

// AddToggleFlag registers a boolean flag that accepts bare usage as well as
// yes/no, on/off and true/false values.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || flagSet.Lookup(name) != nil {
		return
	}
	if target == nil {
		target = new(bool)
	}
	*target = defaultValue
	flag := flagSet.VarPF(&toggleValue{target: target}, name, shorthand, usage)
	flag.NoOptDefVal = toggleNoOptionDefaultValueConstant
}

type toggleValue struct {
	target *bool
}

func (value *toggleValue) String() string {
	if value == nil || value.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*value.target)
}

func (value *toggleValue) Set(raw string) error {
	parsed, parseError := parseToggleValue(raw)
	if parseError != nil {
		return parseError
	}
	*value.target = parsed
	return nil
}

func (value *toggleValue) Type() string {
	return toggleTypeNameConstant
}

func parseToggleValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "true", "t", "1", "yes", "y", "on":
		return true, nil
	case "false", "f", "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf(toggleParseErrorTemplateConstant, raw)
	}
}
