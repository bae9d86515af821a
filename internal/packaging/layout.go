package packaging

import (
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

const (
	platformWindowsConstant               = "windows"
	platformDarwinConstant                = "darwin"
	platformLinuxConstant                 = "linux"
	windowsBinaryExtensionConstant        = ".exe"
	windowsNPMExecutableConstant          = "npm.cmd"
	defaultNPMExecutableConstant          = "npm"
	zipArchiveExtensionConstant           = "zip"
	tarGzipArchiveExtensionConstant       = "tar.gz"
	defaultReleaseFolderNameConstant      = "emanator"
	toolsFolderNameConstant               = "tools"
	dependenciesFolderNameConstant        = "deps"
	temporaryFolderNameConstant           = "temp"
	repositoryFolderNameConstant          = "repo"
	buildFolderNameConstant               = "build"
	binariesFolderNameConstant            = "bin"
	platformArchitectureSeparatorConstant = "-"
)

var gitRemotePattern = regexp.MustCompile(`(?:git@|\w+@|https://)[\w-]+\.\w+[:/](?P<organization>[\w-]+)/(?P<project>[\w-]+?)(?:\.git)?$`)

var architectureNames = map[string]string{
	"amd64": "x64",
	"386":   "ia32",
	"arm64": "arm64",
	"arm":   "arm",
}

// HostPlatform names the operating system and architecture artifacts are built for.
type HostPlatform struct {
	Platform     string
	Architecture string
}

// DetectHostPlatform maps the running Go platform to packaging names.
func DetectHostPlatform() HostPlatform {
	return NewHostPlatform(runtime.GOOS, runtime.GOARCH)
}

// NewHostPlatform maps a GOOS and GOARCH pair to packaging names.
func NewHostPlatform(goos string, goarch string) HostPlatform {
	architecture, known := architectureNames[goarch]
	if !known {
		architecture = goarch
	}
	return HostPlatform{Platform: goos, Architecture: architecture}
}

// PlatformArchitecture joins platform and architecture, e.g. linux-x64.
func (host HostPlatform) PlatformArchitecture() string {
	return host.Platform + platformArchitectureSeparatorConstant + host.Architecture
}

// BinaryExtension is the executable suffix on the platform.
func (host HostPlatform) BinaryExtension() string {
	if host.Platform == platformWindowsConstant {
		return windowsBinaryExtensionConstant
	}
	return ""
}

// NWJSSuffix is the platform label NW.js uses in archive names.
func (host HostPlatform) NWJSSuffix() string {
	switch host.Platform {
	case platformWindowsConstant:
		return "win"
	case platformDarwinConstant:
		return "osx"
	default:
		return platformLinuxConstant
	}
}

// NWJSArchiveExtension is the archive format NW.js publishes for the platform.
func (host HostPlatform) NWJSArchiveExtension() string {
	if host.Platform == platformLinuxConstant {
		return tarGzipArchiveExtensionConstant
	}
	return zipArchiveExtensionConstant
}

// NPMExecutable returns the npm launcher name for the platform.
func (host HostPlatform) NPMExecutable() string {
	if host.Platform == platformWindowsConstant {
		return windowsNPMExecutableConstant
	}
	return defaultNPMExecutableConstant
}

// Folders is the directory layout of a packaging run.
type Folders struct {
	Release      string
	Tools        string
	Dependencies string
	Setup        string
	Root         string
	Temp         string
	Repository   string
	Build        string
	Package      string
	Binaries     string
}

// BaseFolders lists the folders created before any task runs.
func (folders Folders) BaseFolders() []string {
	return []string{folders.Release, folders.Tools, folders.Root, folders.Dependencies, folders.Temp, folders.Setup}
}

// ResolveFolders computes the layout shared by every task. Build, Package and
// Binaries are filled later by the create-folders task.
func ResolveFolders(profile Profile, host HostPlatform, applicationFolder string, homeDirectory string, release bool) Folders {
	releaseFolder := strings.TrimSpace(profile.Project.Base)
	if len(releaseFolder) == 0 {
		releaseFolder = filepath.Join(homeDirectory, defaultReleaseFolderNameConstant)
	}

	destination := profile.Project.Destination
	if len(strings.TrimSpace(destination)) == 0 {
		destination = defaultDestinationFolderNameConstant
	}

	root := filepath.Join(append([]string{releaseFolder}, rootFolderSegments(profile)...)...)

	folders := Folders{
		Release:      releaseFolder,
		Tools:        filepath.Join(releaseFolder, toolsFolderNameConstant),
		Dependencies: filepath.Join(releaseFolder, dependenciesFolderNameConstant),
		Setup:        filepath.Join(applicationFolder, destination, host.PlatformArchitecture()),
		Root:         root,
		Temp:         filepath.Join(root, temporaryFolderNameConstant),
		Repository:   applicationFolder,
	}
	if release {
		folders.Repository = filepath.Join(root, repositoryFolderNameConstant)
	}
	return folders
}

// WithBuild fills the build folders. An empty buildName keeps the build folder flat.
func (folders Folders) WithBuild(profile Profile, host HostPlatform, buildName string, applicationFolder string, localBinaries bool) Folders {
	folders.Build = filepath.Join(folders.Root, buildFolderNameConstant)
	if len(buildName) > 0 {
		folders.Build = filepath.Join(folders.Build, buildName)
	}
	folders.Package = packageFolder(profile, folders.Build)
	folders.Binaries = filepath.Join(folders.Package, binariesFolderNameConstant, host.PlatformArchitecture())
	if localBinaries {
		folders.Binaries = filepath.Join(applicationFolder, binariesFolderNameConstant, host.PlatformArchitecture())
	}
	return folders
}

func packageFolder(profile Profile, folder string) string {
	if packageName := strings.TrimSpace(profile.Project.Package); len(packageName) > 0 {
		return filepath.Join(folder, packageName)
	}
	return folder
}

func rootFolderSegments(profile Profile) []string {
	organization, project := parseGitRemote(profile.Project.Git)
	if len(organization) == 0 {
		organization = strings.TrimSpace(profile.Project.Author)
	}
	if len(organization) > 0 && len(project) > 0 {
		return []string{organization, project}
	}
	return []string{profile.Project.Identifier}
}

func parseGitRemote(remote string) (string, string) {
	match := gitRemotePattern.FindStringSubmatch(strings.TrimSpace(remote))
	if match == nil {
		return "", ""
	}
	return match[gitRemotePattern.SubexpIndex("organization")], match[gitRemotePattern.SubexpIndex("project")]
}
