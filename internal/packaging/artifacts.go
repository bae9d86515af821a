package packaging

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/execshell"
)

const (
	downloadUserAgentConstant         = "Emanator"
	downloadSkippedMessageConstant    = "file found, skipping download"
	downloadStartedMessageConstant    = "fetching dependency"
	extractSkippedMessageConstant     = "fast mode: skipping unpack"
	extractStartedMessageConstant     = "unpacking archive"
	archiveCreatedMessageConstant     = "archive created"
	archiveHashWrittenMessageConstant = "archive hash written"
	zipExtensionConstant              = ".zip"
	tarGzipExtensionConstant          = ".tar.gz"
	tarXzExtensionConstant            = ".tar.xz"
	tgzExtensionConstant              = ".tgz"
	unzipQuietFlagConstant            = "-q"
	unzipOverwriteFlagSuffixConstant  = "o"
	tarExtractFlagConstant            = "-xf"
	zipLevelFlagTemplateConstant      = "-%d"
	zipQuietProgressFlagConstant      = "-qdgds"
	zipProgressChunkConstant          = "10m"
	zipRecursiveFlagConstant          = "-r"
	zipCurrentFolderConstant          = "./"
	archiveHashSuffixConstant         = ".sha1sum"
	archiveReportTemplateConstant     = "%s - %s - Ok\n"
	downloadOperationNameConstant     = "download"
	extractOperationNameConstant      = "unpack"
	archiveOperationNameConstant      = "archive"
	hashOperationNameConstant         = "hash"
	removeOperationNameConstant       = "remove"
)

func (toolkit *Toolkit) download(executionContext context.Context, url string, target string) error {
	if toolkit.flags.Force && toolkit.exists(target) {
		if removeError := toolkit.fileSystem.Remove(target); removeError != nil {
			return wrapTaskError(removeOperationNameConstant, removeError)
		}
	}

	if toolkit.exists(target) {
		toolkit.logger.Info(downloadSkippedMessageConstant, zap.String(pathFieldNameConstant, target))
		return nil
	}

	if folderError := toolkit.ensureFolders(filepath.Dir(target)); folderError != nil {
		return folderError
	}

	toolkit.logger.Info(downloadStartedMessageConstant, zap.String(urlFieldNameConstant, url), zap.String(pathFieldNameConstant, target))
	_, executionError := toolkit.executor.ExecuteCurl(executionContext, execshell.CommandDetails{
		Arguments: []string{"--location", "--fail", "--silent", "--show-error", "--user-agent", downloadUserAgentConstant, "--output", target, url},
	})
	return wrapTaskError(downloadOperationNameConstant, executionError)
}

// extract unpacks zip archives into folder and tarballs next to themselves.
func (toolkit *Toolkit) extract(executionContext context.Context, archivePath string, folder string, overwrite bool) error {
	if toolkit.flags.Fast {
		toolkit.logger.Info(extractSkippedMessageConstant, zap.String(pathFieldNameConstant, archivePath))
		return nil
	}
	toolkit.logger.Info(extractStartedMessageConstant, zap.String(pathFieldNameConstant, archivePath))

	lowerPath := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lowerPath, zipExtensionConstant):
		if folderError := toolkit.ensureFolders(folder); folderError != nil {
			return folderError
		}
		flags := unzipQuietFlagConstant
		if overwrite {
			flags += unzipOverwriteFlagSuffixConstant
		}
		_, executionError := toolkit.executor.Execute(executionContext, execshell.ShellCommand{
			Name:    execshell.CommandUnzip,
			Details: execshell.CommandDetails{Arguments: []string{flags, archivePath}, WorkingDirectory: folder},
		})
		return wrapTaskError(extractOperationNameConstant, executionError)
	case strings.HasSuffix(lowerPath, tarGzipExtensionConstant),
		strings.HasSuffix(lowerPath, tarXzExtensionConstant),
		strings.HasSuffix(lowerPath, tgzExtensionConstant):
		_, executionError := toolkit.executor.Execute(executionContext, execshell.ShellCommand{
			Name:    execshell.CommandTar,
			Details: execshell.CommandDetails{Arguments: []string{tarExtractFlagConstant, archivePath}, WorkingDirectory: filepath.Dir(archivePath)},
		})
		return wrapTaskError(extractOperationNameConstant, executionError)
	default:
		return UnsupportedArchiveError{ArchivePath: archivePath}
	}
}

func (toolkit *Toolkit) zipFolder(executionContext context.Context, folder string, archivePath string, level int) error {
	_, executionError := toolkit.executor.Execute(executionContext, execshell.ShellCommand{
		Name: execshell.CommandZip,
		Details: execshell.CommandDetails{
			Arguments:        []string{fmt.Sprintf(zipLevelFlagTemplateConstant, level), zipQuietProgressFlagConstant, zipProgressChunkConstant, zipRecursiveFlagConstant, archivePath, zipCurrentFolderConstant},
			WorkingDirectory: folder,
		},
	})
	return wrapTaskError(archiveOperationNameConstant, executionError)
}

// fileHash returns the hex SHA-1 digest of the file at path.
func fileHash(fileSystem afero.Fs, path string) (string, error) {
	file, openError := fileSystem.Open(path)
	if openError != nil {
		return "", wrapTaskError(hashOperationNameConstant, openError)
	}
	defer file.Close()

	digest := sha1.New()
	if _, copyError := io.Copy(digest, file); copyError != nil {
		return "", wrapTaskError(hashOperationNameConstant, copyError)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func (toolkit *Toolkit) writeHashFile(target string, hashPath string) (string, error) {
	hash, hashError := fileHash(toolkit.fileSystem, target)
	if hashError != nil {
		return "", hashError
	}
	if writeError := afero.WriteFile(toolkit.fileSystem, hashPath, []byte(hash), filePermissionsConstant); writeError != nil {
		return "", wrapTaskError(hashOperationNameConstant, writeError)
	}
	return hash, nil
}

func (toolkit *Toolkit) reportArchive(target string) {
	info, statError := toolkit.fileSystem.Stat(target)
	if statError != nil || info.Size() == 0 {
		fmt.Fprintf(toolkit.output, archiveReportTemplateConstant, filepath.Base(target), "unknown size")
		return
	}
	size := humanize.Bytes(uint64(info.Size()))
	fmt.Fprintf(toolkit.output, archiveReportTemplateConstant, filepath.Base(target), size)
	toolkit.logger.Info(archiveCreatedMessageConstant, zap.String(pathFieldNameConstant, target), zap.String(archiveSizeFieldNameConstant, size))
}
