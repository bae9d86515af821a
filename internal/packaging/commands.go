package packaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/tyemirov/emanator/internal/execshell"
	"github.com/tyemirov/emanator/internal/tasks"
)

// Folder names accepted by CommandBody.
const (
	CommandFolderRepository = "repository"
	CommandFolderBuild      = "build"
	CommandFolderPackage    = "package"
	CommandFolderSetup      = "setup"
	CommandFolderRoot       = "root"
)

const (
	unknownCommandFolderTemplateConstant = "unknown command folder %q"
	commandOperationNameConstant         = "command"
)

// CommandBody returns a body that runs commandLine through the shell executor inside
// the named layout folder. Arguments are resolved against the template variables when
// the task runs, so $VERSION reflects the version read from the manifest. A single
// element command line is split on whitespace.
func (toolkit *Toolkit) CommandBody(commandLine []string, folder string) (tasks.Body, error) {
	arguments := splitCommandLine(commandLine)
	if len(arguments) == 0 {
		return nil, ErrCommandLineMissing
	}

	folderName := strings.ToLower(strings.TrimSpace(folder))
	if len(folderName) == 0 {
		folderName = CommandFolderRepository
	}
	if _, known := toolkit.commandFolder(folderName); !known {
		return nil, fmt.Errorf(unknownCommandFolderTemplateConstant, folder)
	}

	return tasks.FuncBody(func(executionContext context.Context) error {
		workingDirectory, _ := toolkit.commandFolder(folderName)
		resolver := toolkit.Strings()
		resolved := make([]string, 0, len(arguments))
		for _, argument := range arguments {
			resolved = append(resolved, resolver.Resolve(argument, nil))
		}
		_, executionError := toolkit.executor.Execute(executionContext, execshell.ShellCommand{
			Name:    execshell.CommandName(resolved[0]),
			Details: execshell.CommandDetails{Arguments: resolved[1:], WorkingDirectory: workingDirectory},
		})
		return wrapTaskError(commandOperationNameConstant, executionError)
	}), nil
}

func (toolkit *Toolkit) commandFolder(name string) (string, bool) {
	switch name {
	case CommandFolderRepository:
		return toolkit.folders.Repository, true
	case CommandFolderBuild:
		return toolkit.folders.Build, true
	case CommandFolderPackage:
		return toolkit.folders.Package, true
	case CommandFolderSetup:
		return toolkit.folders.Setup, true
	case CommandFolderRoot:
		return toolkit.folders.Root, true
	default:
		return "", false
	}
}

func splitCommandLine(commandLine []string) []string {
	if len(commandLine) == 1 {
		return strings.Fields(commandLine[0])
	}
	arguments := make([]string, 0, len(commandLine))
	for _, argument := range commandLine {
		if trimmed := strings.TrimSpace(argument); len(trimmed) > 0 {
			arguments = append(arguments, trimmed)
		}
	}
	return arguments
}
