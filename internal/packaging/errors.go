package packaging

import (
	"errors"
	"fmt"
)

const (
	executorMissingMessageConstant           = "packaging toolkit requires a shell executor"
	setupArtifactMissingMessageConstant      = "unable to locate setup file"
	unsupportedArchiveTemplateConstant       = "no matching extension for %s"
	taskOperationErrorTemplateConstant       = "%s: %w"
	manifestDecodeErrorTemplateConstant      = "unable to decode manifest %s: %w"
	folderCreationErrorTemplateConstant      = "unable to create folder %s: %w"
	platformUnsupportedErrorTemplateConstant = "ffmpeg copy is not supported on platform %s"
	commandLineMissingMessageConstant        = "command task requires a command line"
)

var (
	// ErrExecutorMissing indicates the toolkit was built without a shell executor.
	ErrExecutorMissing = errors.New(executorMissingMessageConstant)
	// ErrSetupArtifactMissing indicates upload found no versioned artifact to publish.
	ErrSetupArtifactMissing = errors.New(setupArtifactMissingMessageConstant)
	// ErrCommandLineMissing indicates a declared command task has nothing to run.
	ErrCommandLineMissing = errors.New(commandLineMissingMessageConstant)
)

// UnsupportedArchiveError reports an archive whose extension cannot be extracted.
type UnsupportedArchiveError struct {
	ArchivePath string
}

// Error describes the unsupported archive.
func (archiveError UnsupportedArchiveError) Error() string {
	return fmt.Sprintf(unsupportedArchiveTemplateConstant, archiveError.ArchivePath)
}

// UnsupportedPlatformError reports a platform-specific step with no implementation for the host.
type UnsupportedPlatformError struct {
	Platform string
}

// Error describes the unsupported platform.
func (platformError UnsupportedPlatformError) Error() string {
	return fmt.Sprintf(platformUnsupportedErrorTemplateConstant, platformError.Platform)
}

func wrapTaskError(operation string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf(taskOperationErrorTemplateConstant, operation, cause)
}

func wrapFolderError(folder string, cause error) error {
	return fmt.Errorf(folderCreationErrorTemplateConstant, folder, cause)
}
