// Package packaging implements the built-in desktop packaging tasks: folder layout,
// dependency downloads, extraction, npm, archiving and upload.
package packaging

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/execshell"
	"github.com/tyemirov/emanator/internal/tasks"
	"github.com/tyemirov/emanator/internal/utils"
)

const (
	folderPermissionsConstant       = 0o755
	filePermissionsConstant         = 0o644
	workingFolderLogMessageConstant = "packaging layout resolved"
	rootFolderFieldNameConstant     = "root"
	setupFolderFieldNameConstant    = "setup"
	taskFieldNameConstant           = "task"
	pathFieldNameConstant           = "path"
	versionFieldNameConstant        = "version"
	urlFieldNameConstant            = "url"
	archiveSizeFieldNameConstant    = "size"
	hashFieldNameConstant           = "sha1"
)

// ToolkitConfiguration carries the collaborators of a Toolkit.
type ToolkitConfiguration struct {
	Profile           Profile
	Host              HostPlatform
	Flags             utils.ExecutionFlags
	Executor          *execshell.ShellExecutor
	Logger            *zap.Logger
	FileSystem        afero.Fs
	ApplicationFolder string
	HomeDirectory     string
	Output            io.Writer
	LookupBinary      func(name string) (string, error)
	VersionFallback   func(executionContext context.Context, folder string) string
}

// Toolkit holds the state shared by the built-in packaging task bodies. Bodies run
// sequentially, so the mutable fields need no locking.
type Toolkit struct {
	profile           Profile
	host              HostPlatform
	flags             utils.ExecutionFlags
	executor          *execshell.ShellExecutor
	logger            *zap.Logger
	fileSystem        afero.Fs
	applicationFolder string
	output            io.Writer
	lookupBinary      func(name string) (string, error)
	versionFallback   func(executionContext context.Context, folder string) string

	folders        Folders
	projectVersion string
	manifest       map[string]any
	archivePath    string
	bodies         map[string]tasks.Body
}

// NewToolkit validates the profile and resolves the base folder layout.
func NewToolkit(configuration ToolkitConfiguration) (*Toolkit, error) {
	if configuration.Executor == nil {
		return nil, ErrExecutorMissing
	}

	profile := configuration.Profile.Normalize()
	if configuration.Flags.Archive {
		profile.Project.Archive = true
	}
	if validationError := profile.Validate(); validationError != nil {
		return nil, validationError
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileSystem := configuration.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	output := configuration.Output
	if output == nil {
		output = io.Discard
	}
	host := configuration.Host
	if len(host.Platform) == 0 {
		host = DetectHostPlatform()
	}

	toolkit := &Toolkit{
		profile:           profile,
		host:              host,
		flags:             configuration.Flags,
		executor:          configuration.Executor.WithDryRun(configuration.Flags.DryRun),
		logger:            logger,
		fileSystem:        fileSystem,
		applicationFolder: configuration.ApplicationFolder,
		output:            output,
		lookupBinary:      configuration.LookupBinary,
		versionFallback:   configuration.VersionFallback,
		folders:           ResolveFolders(profile, host, configuration.ApplicationFolder, configuration.HomeDirectory, configuration.Flags.Release),
		projectVersion:    strings.TrimSpace(profile.Project.Version),
	}
	toolkit.bodies = toolkit.builtinBodies()

	logger.Debug(workingFolderLogMessageConstant,
		zap.String(rootFolderFieldNameConstant, toolkit.folders.Root),
		zap.String(setupFolderFieldNameConstant, toolkit.folders.Setup),
	)
	return toolkit, nil
}

// Profile returns the normalized profile the toolkit builds.
func (toolkit *Toolkit) Profile() Profile {
	return toolkit.profile
}

// Folders returns the current folder layout.
func (toolkit *Toolkit) Folders() Folders {
	return toolkit.folders
}

// ProjectVersion returns the version from the profile or the application manifest.
func (toolkit *Toolkit) ProjectVersion() string {
	return toolkit.projectVersion
}

// ArchivePath returns the archive produced by the archive task, if any.
func (toolkit *Toolkit) ArchivePath() string {
	return toolkit.archivePath
}

// ResolveBody implements tasks.BodyResolver for the built-in task identifiers.
func (toolkit *Toolkit) ResolveBody(identifier string) (tasks.Body, bool) {
	body, found := toolkit.bodies[identifier]
	return body, found
}

// Strings returns a resolver bound to the current project version.
func (toolkit *Toolkit) Strings() StringResolver {
	return NewStringResolver(toolkit.profile, toolkit.host, toolkit.projectVersion)
}

// RootPipeline returns the generic setup stage for the profile.
func (toolkit *Toolkit) RootPipeline() tasks.PipelineDescription {
	return RootPipeline(toolkit.profile, toolkit.flags)
}

// PlatformPipeline returns the platform finishing stage for the profile.
func (toolkit *Toolkit) PlatformPipeline() tasks.PipelineDescription {
	return PlatformPipeline(toolkit.profile)
}

// RegisterStandaloneTasks adds tasks that are reachable only by explicit request.
func (toolkit *Toolkit) RegisterStandaloneTasks(registry *tasks.Registry) error {
	_, err := registry.Register(UploadTaskIdentifier, []string{}, toolkit.bodies[UploadTaskIdentifier])
	return err
}

func (toolkit *Toolkit) ensureFolders(folders ...string) error {
	var combinedError error
	for _, folder := range folders {
		if len(strings.TrimSpace(folder)) == 0 {
			continue
		}
		if mkdirError := toolkit.fileSystem.MkdirAll(folder, folderPermissionsConstant); mkdirError != nil {
			combinedError = multierr.Append(combinedError, wrapFolderError(folder, mkdirError))
		}
	}
	return combinedError
}

func (toolkit *Toolkit) exists(path string) bool {
	found, err := afero.Exists(toolkit.fileSystem, path)
	return err == nil && found
}

func (toolkit *Toolkit) dependencyPath(fileName string) string {
	return filepath.Join(toolkit.folders.Dependencies, fileName)
}
