package packaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/execshell"
	"github.com/tyemirov/emanator/internal/tasks"
)

const (
	nwjsDownloadBaseURLTemplateConstant   = "https://dl.nwjs.io/v%s/%s"
	ffmpegDownloadURLTemplateConstant     = "https://github.com/iteufel/nwjs-ffmpeg-prebuilt/releases/download/%s/%s"
	nwjsArchiveNameTemplateConstant       = "nwjs-v%s-%s-x64.%s"
	nwjsSDKArchiveNameTemplateConstant    = "nwjs-sdk-v%s-%s-x64.%s"
	nwjsFolderNameTemplateConstant        = "nwjs-v%s-%s-x64"
	nwjsSDKFolderNameTemplateConstant     = "nwjs-sdk-v%s-%s-x64"
	ffmpegArchiveNameTemplateConstant     = "%s-%s-x64.zip"
	nwjsApplicationBundleConstant         = "nwjs.app"
	creditsFileNameConstant               = "credits.html"
	chromeCreditsFileNameConstant         = "chrome_credits.html"
	windowsFFmpegLibraryConstant          = "ffmpeg.dll"
	linuxFFmpegLibraryConstant            = "libffmpeg.so"
	darwinFFmpegLibraryConstant           = "libffmpeg.dylib"
	linuxLibraryFolderConstant            = "lib"
	darwinFrameworkVersionsFolderConstant = "nwjs.app/Contents/Frameworks/nwjs Framework.framework/Versions"
	nodeBinaryNameConstant                = "node"
	recursiveCopyFlagConstant             = "-R"
	copyAllContentsSuffixConstant         = "/."
	gitFsckArgumentConstant               = "fsck"
	gitPullArgumentConstant               = "pull"
	gitCloneArgumentConstant              = "clone"
	gitSingleBranchFlagConstant           = "--single-branch"
	gitBranchFlagConstant                 = "--branch"
	npmInstallArgumentConstant            = "install"
	npmUpdateArgumentConstant             = "update"
	npmOmitDevelopmentFlagConstant        = "--omit=dev"
	cloneSkippedMessageConstant           = "repository present, checking integrity"
	npmSkippedMessageConstant             = "npm step skipped"
	archivePreparingMessageConstant       = "preparing archive"
	nodeBinaryCopiedMessageConstant       = "node binary copied"
	copyOperationNameConstant             = "copy"
	cloneOperationNameConstant            = "clone"
	npmOperationNameConstant              = "npm"
	argumentsFieldNameConstant            = "arguments"
)

func (toolkit *Toolkit) builtinBodies() map[string]tasks.Body {
	return map[string]tasks.Body{
		InitTaskIdentifier:               tasks.CallbackBody(toolkit.initialize),
		CloneTaskIdentifier:              tasks.FuncBody(toolkit.clone),
		ManifestReadTaskIdentifier:       tasks.FuncBody(toolkit.readManifest),
		CreateFoldersTaskIdentifier:      tasks.CallbackBody(toolkit.createFolders),
		ManifestWriteTaskIdentifier:      tasks.FuncBody(toolkit.writeManifest),
		NPMInstallTaskIdentifier:         tasks.FuncBody(toolkit.npmInstall),
		NPMUpdateTaskIdentifier:          tasks.FuncBody(toolkit.npmUpdate),
		NWJSSDKDownloadTaskIdentifier:    toolkit.downloadBody(toolkit.nwjsSDKArchiveName, toolkit.nwjsArchiveURL, alwaysEnabled),
		NWJSFFmpegDownloadTaskIdentifier: toolkit.downloadBody(toolkit.ffmpegArchiveName, toolkit.ffmpegArchiveURL, toolkit.ffmpegEnabled),
		NWJSDownloadTaskIdentifier:       toolkit.downloadBody(toolkit.nwjsArchiveName, toolkit.nwjsArchiveURL, alwaysEnabled),
		NWJSSDKUnzipTaskIdentifier:       toolkit.extractBody(toolkit.nwjsSDKArchiveName, alwaysEnabled),
		NWJSFFmpegUnzipTaskIdentifier:    toolkit.extractBody(toolkit.ffmpegArchiveName, toolkit.ffmpegEnabled),
		NWJSUnzipTaskIdentifier:          toolkit.extractBody(toolkit.nwjsArchiveName, alwaysEnabled),
		UnlinkNWJSAppTaskIdentifier:      tasks.FuncBody(toolkit.unlinkNWJSApplication),
		NWJSCopyTaskIdentifier:           tasks.StreamBody(toolkit.copyNWJS),
		NWJSFFmpegCopyTaskIdentifier:     tasks.FuncBody(toolkit.copyFFmpeg),
		NWJSCleanupTaskIdentifier:        tasks.FuncBody(toolkit.cleanupNWJS),
		NodeBinaryTaskIdentifier:         tasks.FuncBody(toolkit.copyNodeBinary),
		ArchiveTaskIdentifier:            tasks.FuncBody(toolkit.archive),
		UploadTaskIdentifier:             tasks.FuncBody(toolkit.upload),
	}
}

func alwaysEnabled() bool {
	return true
}

func (toolkit *Toolkit) initialize(_ context.Context, completion *tasks.Completion) {
	completion.Done(toolkit.ensureFolders(toolkit.folders.BaseFolders()...))
}

func (toolkit *Toolkit) clone(executionContext context.Context) error {
	if !toolkit.flags.Release {
		return nil
	}

	if toolkit.exists(toolkit.folders.Repository) {
		toolkit.logger.Info(cloneSkippedMessageConstant, zap.String(pathFieldNameConstant, toolkit.folders.Repository))
		for _, argument := range []string{gitFsckArgumentConstant, gitPullArgumentConstant} {
			if _, executionError := toolkit.executor.ExecuteGit(executionContext, execshell.CommandDetails{
				Arguments:        []string{argument},
				WorkingDirectory: toolkit.folders.Repository,
			}); executionError != nil {
				return wrapTaskError(cloneOperationNameConstant, executionError)
			}
		}
		return nil
	}

	arguments := []string{gitCloneArgumentConstant}
	if branch := strings.TrimSpace(toolkit.flags.Branch); len(branch) > 0 {
		arguments = append(arguments, gitSingleBranchFlagConstant, gitBranchFlagConstant, branch)
	}
	arguments = append(arguments, toolkit.profile.Project.Git, repositoryFolderNameConstant)

	_, executionError := toolkit.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: toolkit.folders.Root,
	})
	return wrapTaskError(cloneOperationNameConstant, executionError)
}

func (toolkit *Toolkit) createFolders(_ context.Context, completion *tasks.Completion) {
	buildName := ""
	if toolkit.profile.Project.Folder {
		buildName = toolkit.Strings().Resolve(toolkit.profile.Project.FolderName, nil)
	}
	toolkit.folders = toolkit.folders.WithBuild(toolkit.profile, toolkit.host, buildName, toolkit.applicationFolder, toolkit.profile.Project.LocalBinaries)
	completion.Done(toolkit.ensureFolders(toolkit.folders.Build, toolkit.folders.Package, toolkit.folders.Binaries))
}

func (toolkit *Toolkit) npmInstall(executionContext context.Context) error {
	arguments := []string{npmInstallArgumentConstant}
	if toolkit.profile.Project.Production {
		arguments = append(arguments, npmOmitDevelopmentFlagConstant)
	}
	return toolkit.runNPM(executionContext, arguments)
}

func (toolkit *Toolkit) npmUpdate(executionContext context.Context) error {
	return toolkit.runNPM(executionContext, []string{npmUpdateArgumentConstant})
}

func (toolkit *Toolkit) runNPM(executionContext context.Context, arguments []string) error {
	if toolkit.profile.Project.SkipNPM {
		toolkit.logger.Info(npmSkippedMessageConstant, zap.Strings(argumentsFieldNameConstant, arguments))
		return nil
	}
	_, executionError := toolkit.executor.Execute(executionContext, execshell.ShellCommand{
		Name:    execshell.CommandName(toolkit.host.NPMExecutable()),
		Details: execshell.CommandDetails{Arguments: arguments, WorkingDirectory: toolkit.folders.Package},
	})
	return wrapTaskError(npmOperationNameConstant, executionError)
}

func (toolkit *Toolkit) ffmpegEnabled() bool {
	return toolkit.profile.NWJS.FFmpeg
}

func (toolkit *Toolkit) nwjsArchiveName() string {
	return fmt.Sprintf(nwjsArchiveNameTemplateConstant, toolkit.profile.NWJS.Version, toolkit.host.NWJSSuffix(), toolkit.host.NWJSArchiveExtension())
}

func (toolkit *Toolkit) nwjsSDKArchiveName() string {
	return fmt.Sprintf(nwjsSDKArchiveNameTemplateConstant, toolkit.profile.NWJS.Version, toolkit.host.NWJSSuffix(), toolkit.host.NWJSArchiveExtension())
}

func (toolkit *Toolkit) ffmpegArchiveName() string {
	return fmt.Sprintf(ffmpegArchiveNameTemplateConstant, toolkit.profile.NWJS.Version, toolkit.host.NWJSSuffix())
}

func (toolkit *Toolkit) nwjsArchiveURL(fileName string) string {
	return fmt.Sprintf(nwjsDownloadBaseURLTemplateConstant, toolkit.profile.NWJS.Version, fileName)
}

func (toolkit *Toolkit) ffmpegArchiveURL(fileName string) string {
	return fmt.Sprintf(ffmpegDownloadURLTemplateConstant, toolkit.profile.NWJS.Version, fileName)
}

// downloadBody runs the download on its own goroutine and reports through a future.
func (toolkit *Toolkit) downloadBody(fileName func() string, urlFor func(string) string, enabled func() bool) tasks.Body {
	return tasks.FutureBody(func(executionContext context.Context) *tasks.Future {
		if !enabled() {
			return tasks.ResolvedFuture()
		}
		name := fileName()
		return tasks.Go(func() error {
			return toolkit.download(executionContext, urlFor(name), toolkit.dependencyPath(name))
		})
	})
}

func (toolkit *Toolkit) extractBody(fileName func() string, enabled func() bool) tasks.Body {
	return tasks.FuncBody(func(executionContext context.Context) error {
		if !enabled() {
			return nil
		}
		return toolkit.extract(executionContext, toolkit.dependencyPath(fileName()), toolkit.folders.Dependencies, true)
	})
}

func (toolkit *Toolkit) unlinkNWJSApplication(context.Context) error {
	bundle := filepath.Join(toolkit.folders.Build, nwjsApplicationBundleConstant)
	if !toolkit.exists(bundle) {
		return nil
	}
	return wrapTaskError(removeOperationNameConstant, toolkit.fileSystem.RemoveAll(bundle))
}

// copyNWJS copies the unpacked runtime into the build folder and reports through a stream.
func (toolkit *Toolkit) copyNWJS(executionContext context.Context) tasks.Stream {
	template := nwjsFolderNameTemplateConstant
	if toolkit.profile.NWJS.SDK {
		template = nwjsSDKFolderNameTemplateConstant
	}
	source := toolkit.dependencyPath(fmt.Sprintf(template, toolkit.profile.NWJS.Version, toolkit.host.NWJSSuffix()))

	stream := tasks.NewEventStream()
	go func() {
		defer stream.Close()
		_, executionError := toolkit.executor.Execute(executionContext, execshell.ShellCommand{
			Name: execshell.CommandCopy,
			Details: execshell.CommandDetails{
				Arguments:        []string{recursiveCopyFlagConstant, source + copyAllContentsSuffixConstant, toolkit.folders.Build},
				WorkingDirectory: toolkit.folders.Build,
			},
		})
		if executionError != nil {
			stream.Emit(tasks.StreamEventError, wrapTaskError(copyOperationNameConstant, executionError))
			return
		}
		stream.Emit(tasks.StreamEventFinish, nil)
		stream.Emit(tasks.StreamEventEnd, nil)
	}()
	return stream
}

func (toolkit *Toolkit) copyFFmpeg(context.Context) error {
	if !toolkit.profile.NWJS.FFmpeg {
		return nil
	}

	switch toolkit.host.Platform {
	case platformWindowsConstant:
		return toolkit.copyFile(toolkit.dependencyPath(windowsFFmpegLibraryConstant), filepath.Join(toolkit.folders.Build, windowsFFmpegLibraryConstant))
	case platformLinuxConstant:
		return toolkit.copyFile(toolkit.dependencyPath(linuxFFmpegLibraryConstant), filepath.Join(toolkit.folders.Build, linuxLibraryFolderConstant, linuxFFmpegLibraryConstant))
	case platformDarwinConstant:
		versionsFolder := filepath.Join(toolkit.folders.Build, darwinFrameworkVersionsFolderConstant)
		entries, readError := afero.ReadDir(toolkit.fileSystem, versionsFolder)
		if readError != nil {
			return wrapTaskError(copyOperationNameConstant, readError)
		}
		for _, entry := range entries {
			target := filepath.Join(versionsFolder, entry.Name(), darwinFFmpegLibraryConstant)
			if copyError := toolkit.copyFile(toolkit.dependencyPath(darwinFFmpegLibraryConstant), target); copyError != nil {
				return copyError
			}
		}
		return nil
	default:
		return UnsupportedPlatformError{Platform: toolkit.host.Platform}
	}
}

func (toolkit *Toolkit) cleanupNWJS(context.Context) error {
	credits := filepath.Join(toolkit.folders.Build, creditsFileNameConstant)
	if !toolkit.exists(credits) {
		return nil
	}
	return wrapTaskError(copyOperationNameConstant, toolkit.fileSystem.Rename(credits, filepath.Join(toolkit.folders.Build, chromeCreditsFileNameConstant)))
}

func (toolkit *Toolkit) copyNodeBinary(context.Context) error {
	if !toolkit.profile.Project.Standalone || !toolkit.profile.HasType(ProjectTypeNode) {
		return nil
	}
	lookup := toolkit.lookupBinary
	if lookup == nil {
		lookup = exec.LookPath
	}
	source, lookupError := lookup(nodeBinaryNameConstant)
	if lookupError != nil {
		return wrapTaskError(copyOperationNameConstant, lookupError)
	}
	target := filepath.Join(toolkit.folders.Package, nodeBinaryNameConstant+toolkit.host.BinaryExtension())
	if copyError := toolkit.copyFile(source, target); copyError != nil {
		return copyError
	}
	toolkit.logger.Info(nodeBinaryCopiedMessageConstant, zap.String(pathFieldNameConstant, target))
	return nil
}

func (toolkit *Toolkit) archive(executionContext context.Context) error {
	if !toolkit.profile.Project.Archive {
		return nil
	}
	toolkit.logger.Info(archivePreparingMessageConstant)

	archiveName := toolkit.Strings().Resolve(toolkit.profile.Project.ArchiveName, map[string]string{TemplateVariableExtension: zipArchiveExtensionConstant})
	if !strings.HasSuffix(archiveName, zipExtensionConstant) {
		archiveName += zipExtensionConstant
	}
	target := filepath.Join(toolkit.folders.Setup, archiveName)
	if toolkit.exists(target) {
		if removeError := toolkit.fileSystem.Remove(target); removeError != nil {
			return wrapTaskError(removeOperationNameConstant, removeError)
		}
	}
	toolkit.archivePath = target

	source := toolkit.folders.Build
	if toolkit.profile.Project.Folder {
		source = filepath.Join(toolkit.folders.Root, buildFolderNameConstant)
	}
	if zipError := toolkit.zipFolder(executionContext, source, target, toolkit.profile.Project.ArchiveLevel); zipError != nil {
		return zipError
	}
	if toolkit.flags.DryRun {
		return nil
	}

	toolkit.reportArchive(target)
	hash, hashError := toolkit.writeHashFile(target, target+archiveHashSuffixConstant)
	if hashError != nil {
		return hashError
	}
	toolkit.logger.Info(archiveHashWrittenMessageConstant, zap.String(pathFieldNameConstant, target), zap.String(hashFieldNameConstant, hash))
	return nil
}

func (toolkit *Toolkit) copyFile(source string, target string) error {
	if folderError := toolkit.ensureFolders(filepath.Dir(target)); folderError != nil {
		return folderError
	}
	sourceFile, openError := toolkit.fileSystem.Open(source)
	if openError != nil {
		return wrapTaskError(copyOperationNameConstant, openError)
	}
	defer sourceFile.Close()

	mode := os.FileMode(filePermissionsConstant)
	if info, statError := sourceFile.Stat(); statError == nil {
		mode = info.Mode().Perm()
	}
	targetFile, createError := toolkit.fileSystem.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if createError != nil {
		return wrapTaskError(copyOperationNameConstant, createError)
	}
	if _, copyError := io.Copy(targetFile, sourceFile); copyError != nil {
		_ = targetFile.Close()
		return wrapTaskError(copyOperationNameConstant, copyError)
	}
	return wrapTaskError(copyOperationNameConstant, targetFile.Close())
}
