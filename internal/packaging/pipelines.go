package packaging

import (
	"strings"

	"github.com/tyemirov/emanator/internal/tasks"
	"github.com/tyemirov/emanator/internal/utils"
)

const nwjsTaskMarkerConstant = "nwjs"

// Built-in task identifiers.
const (
	InitTaskIdentifier               = "init"
	CloneTaskIdentifier              = "clone"
	ManifestReadTaskIdentifier       = "manifest-read"
	CreateFoldersTaskIdentifier      = "create-folders"
	ManifestWriteTaskIdentifier      = "manifest-write"
	NPMInstallTaskIdentifier         = "npm-install"
	NPMUpdateTaskIdentifier          = "npm-update"
	NWJSSDKDownloadTaskIdentifier    = "nwjs-sdk-download"
	NWJSFFmpegDownloadTaskIdentifier = "nwjs-ffmpeg-download"
	NWJSDownloadTaskIdentifier       = "nwjs-download"
	NWJSSDKUnzipTaskIdentifier       = "nwjs-sdk-unzip"
	NWJSFFmpegUnzipTaskIdentifier    = "nwjs-ffmpeg-unzip"
	NWJSUnzipTaskIdentifier          = "nwjs-unzip"
	UnlinkNWJSAppTaskIdentifier      = "unlink-nwjs-app"
	NWJSCopyTaskIdentifier           = "nwjs-copy"
	NWJSFFmpegCopyTaskIdentifier     = "nwjs-ffmpeg-copy"
	NWJSCleanupTaskIdentifier        = "nwjs-cleanup"
	NodeModulesTaskIdentifier        = "node-modules"
	NodeBinaryTaskIdentifier         = "node-binary"
	OriginTaskIdentifier             = "origin"
	ArchiveTaskIdentifier            = "archive"
	UploadTaskIdentifier             = "upload"
)

var rootPipelineIdentifiers = []string{
	InitTaskIdentifier,
	CloneTaskIdentifier,
	ManifestReadTaskIdentifier,
	CreateFoldersTaskIdentifier,
	ManifestWriteTaskIdentifier,
	NPMInstallTaskIdentifier,
	NPMUpdateTaskIdentifier,
	NWJSSDKDownloadTaskIdentifier,
	NWJSFFmpegDownloadTaskIdentifier,
	NWJSDownloadTaskIdentifier,
	NWJSSDKUnzipTaskIdentifier,
	NWJSFFmpegUnzipTaskIdentifier,
	NWJSUnzipTaskIdentifier,
	UnlinkNWJSAppTaskIdentifier,
	NWJSCopyTaskIdentifier,
	NWJSFFmpegCopyTaskIdentifier,
	NWJSCleanupTaskIdentifier,
	NodeModulesTaskIdentifier,
	NodeBinaryTaskIdentifier,
	OriginTaskIdentifier,
}

// RootPipeline returns the generic setup stage. Clone appears only for release
// builds; NW.js steps appear only for NWJS projects or when the SDK is requested.
func RootPipeline(profile Profile, flags utils.ExecutionFlags) tasks.PipelineDescription {
	includeNWJS := profile.HasType(ProjectTypeNWJS) || profile.NWJS.SDK
	description := make(tasks.PipelineDescription, 0, len(rootPipelineIdentifiers))
	for _, identifier := range rootPipelineIdentifiers {
		if identifier == CloneTaskIdentifier && !flags.Release {
			continue
		}
		if !includeNWJS && strings.Contains(identifier, nwjsTaskMarkerConstant) {
			continue
		}
		description = append(description, tasks.Bare(identifier))
	}
	return description
}

// PlatformPipeline returns the finishing stage: an archive step when archiving is enabled.
func PlatformPipeline(profile Profile) tasks.PipelineDescription {
	if !profile.Project.Archive {
		return tasks.PipelineDescription{}
	}
	return tasks.PipelineDescription{tasks.Bare(ArchiveTaskIdentifier)}
}
