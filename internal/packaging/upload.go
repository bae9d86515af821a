package packaging

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/tyemirov/emanator/internal/execshell"
)

const (
	scpPortFlagConstant            = "-P"
	uploadHashExtensionConstant    = "sha1"
	uploadSkippedMessageConstant   = "upload skipped: scp destination not configured"
	uploadHashMessageConstant      = "setup artifact hashed"
	uploadOperationNameConstant    = "upload"
	minimumSemanticVersionConstant = "v0.0.0"
)

var artifactVersionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// LatestArtifact returns the file in names that starts with identifier and carries
// the highest semantic version, or an empty string when none qualifies.
func LatestArtifact(names []string, identifier string) string {
	latestVersion := minimumSemanticVersionConstant
	latestName := ""
	for _, name := range names {
		if !strings.HasPrefix(name, identifier) {
			continue
		}
		version := artifactVersionPattern.FindString(name)
		if len(version) == 0 {
			continue
		}
		candidate := canonicalVersion(version)
		if semver.Compare(candidate, latestVersion) > 0 {
			latestVersion = candidate
			latestName = name
		}
	}
	return latestName
}

// HashFileName replaces the final extension of name with sha1.
func HashFileName(name string) string {
	extension := filepath.Ext(name)
	return strings.TrimSuffix(name, extension) + "." + uploadHashExtensionConstant
}

func (toolkit *Toolkit) upload(executionContext context.Context) error {
	destination := strings.TrimSpace(toolkit.profile.SCP.Destination)
	if len(destination) == 0 {
		toolkit.logger.Info(uploadSkippedMessageConstant)
		return nil
	}

	entries, readError := afero.ReadDir(toolkit.fileSystem, toolkit.folders.Setup)
	if readError != nil {
		return wrapTaskError(uploadOperationNameConstant, readError)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	latest := LatestArtifact(names, toolkit.profile.Project.Identifier)
	if len(latest) == 0 {
		return ErrSetupArtifactMissing
	}

	hashName := HashFileName(latest)
	hash, hashError := toolkit.writeHashFile(filepath.Join(toolkit.folders.Setup, latest), filepath.Join(toolkit.folders.Setup, hashName))
	if hashError != nil {
		return hashError
	}
	toolkit.logger.Info(uploadHashMessageConstant, zap.String(pathFieldNameConstant, hashName), zap.String(hashFieldNameConstant, hash))

	arguments := []string{}
	if toolkit.profile.SCP.Port > 0 {
		arguments = append(arguments, scpPortFlagConstant, strconv.Itoa(toolkit.profile.SCP.Port))
	}
	arguments = append(arguments, hashName, latest, destination)

	_, executionError := toolkit.executor.Execute(executionContext, execshell.ShellCommand{
		Name:    execshell.CommandSCP,
		Details: execshell.CommandDetails{Arguments: arguments, WorkingDirectory: toolkit.folders.Setup},
	})
	return wrapTaskError(uploadOperationNameConstant, executionError)
}
