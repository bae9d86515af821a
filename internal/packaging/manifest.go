package packaging

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	manifestFileNameConstant          = "package.json"
	manifestVersionKeyConstant        = "version"
	manifestReleaseTypeKeyConstant    = "release-type"
	manifestReleaseValueConstant      = "release"
	manifestDeveloperValueConstant    = "developer"
	manifestIndentConstant            = "\t"
	manifestMissingMessageConstant    = "manifest not found"
	manifestLoadedMessageConstant     = "package version"
	manifestWriteOperationConstant    = "manifest write"
	manifestEncodeOperationConstant   = "manifest encode"
	manifestReadOperationNameConstant = "manifest read"
)

// readManifest loads the application manifest. The project version comes from the
// profile, then the manifest, then the repository tags.
func (toolkit *Toolkit) readManifest(executionContext context.Context) error {
	repositoryFolder := packageFolder(toolkit.profile, toolkit.folders.Repository)
	manifestPath := filepath.Join(repositoryFolder, manifestFileNameConstant)
	if toolkit.exists(manifestPath) {
		if loadError := toolkit.loadManifest(manifestPath); loadError != nil {
			return loadError
		}
	} else {
		toolkit.logger.Warn(manifestMissingMessageConstant, zap.String(pathFieldNameConstant, manifestPath))
	}

	if len(toolkit.projectVersion) == 0 && toolkit.versionFallback != nil {
		toolkit.projectVersion = strings.TrimSpace(toolkit.versionFallback(executionContext, repositoryFolder))
	}
	toolkit.logger.Info(manifestLoadedMessageConstant, zap.String(versionFieldNameConstant, toolkit.projectVersion))
	return nil
}

func (toolkit *Toolkit) loadManifest(manifestPath string) error {
	content, readError := afero.ReadFile(toolkit.fileSystem, manifestPath)
	if readError != nil {
		return wrapTaskError(manifestReadOperationNameConstant, readError)
	}
	manifest := map[string]any{}
	if decodeError := json.Unmarshal(content, &manifest); decodeError != nil {
		return fmt.Errorf(manifestDecodeErrorTemplateConstant, manifestPath, decodeError)
	}
	toolkit.manifest = manifest

	if len(toolkit.projectVersion) == 0 {
		if version, isString := manifest[manifestVersionKeyConstant].(string); isString {
			toolkit.projectVersion = strings.TrimSpace(version)
		}
	}
	return nil
}

// writeManifest stores the manifest in the package folder, marking the build type and
// promoting values keyed by the project identifier.
func (toolkit *Toolkit) writeManifest(context.Context) error {
	if toolkit.manifest == nil {
		return nil
	}

	releaseType := manifestDeveloperValueConstant
	if toolkit.flags.Release {
		releaseType = manifestReleaseValueConstant
	}
	toolkit.manifest[manifestReleaseTypeKeyConstant] = releaseType

	for key, value := range toolkit.manifest {
		nested, isObject := value.(map[string]any)
		if !isObject {
			continue
		}
		if override, found := nested[toolkit.profile.Project.Identifier]; found {
			toolkit.manifest[key] = override
		}
	}

	content, encodeError := json.MarshalIndent(toolkit.manifest, "", manifestIndentConstant)
	if encodeError != nil {
		return wrapTaskError(manifestEncodeOperationConstant, encodeError)
	}
	if folderError := toolkit.ensureFolders(toolkit.folders.Package); folderError != nil {
		return folderError
	}
	target := filepath.Join(toolkit.folders.Package, manifestFileNameConstant)
	return wrapTaskError(manifestWriteOperationConstant, afero.WriteFile(toolkit.fileSystem, target, content, filePermissionsConstant))
}
