package packaging_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/emanator/internal/execshell"
	"github.com/tyemirov/emanator/internal/packaging"
	"github.com/tyemirov/emanator/internal/tasks"
	"github.com/tyemirov/emanator/internal/utils"
)

func sealedBuiltinPipeline(testInstance *testing.T, fixture toolkitFixture, declare func(builder *tasks.PipelineBuilder)) *tasks.Registry {
	testInstance.Helper()
	builder := tasks.NewPipelineBuilder(tasks.NewRegistry(), fixture.toolkit)
	require.NoError(testInstance, builder.Root(fixture.toolkit.RootPipeline()))
	require.NoError(testInstance, builder.Platform(fixture.toolkit.PlatformPipeline()))
	if declare != nil {
		declare(builder)
	}
	require.NoError(testInstance, fixture.toolkit.RegisterStandaloneTasks(builder.Registry()))
	_, sealError := builder.Seal()
	require.NoError(testInstance, sealError)
	return builder.Registry()
}

func TestDefaultPipelineBuildsAndArchivesUtility(testInstance *testing.T) {
	profile := testProfile()
	profile.Project.Archive = true
	fixture := newToolkitFixture(testInstance, profile, utils.ExecutionFlags{})
	fixture.runner.handle = archiveHandler(fixture.fileSystem)
	fixture.writeFile(testInstance, filepath.Join(testApplicationFolderConstant, "package.json"), testManifestContentConstant)

	registry := sealedBuiltinPipeline(testInstance, fixture, nil)
	plan, planError := tasks.Linearize(registry, []string{tasks.DefaultTaskIdentifier}, tasks.SweepDeclaredEdges)
	require.NoError(testInstance, planError)
	require.Equal(testInstance, []string{
		"init", "manifest-read", "create-folders", "manifest-write", "npm-install", "npm-update",
		"node-modules", "node-binary", "origin", "done", "archive", "default",
	}, plan.Identifiers())

	outcome, runError := tasks.NewRunner(registry, tasks.WithLogger(zap.NewNop())).Run(context.Background(), plan)
	require.NoError(testInstance, runError)
	require.Equal(testInstance, plan.Len(), outcome.Executed)

	require.Len(testInstance, fixture.runner.named(execshell.CommandNPM), 2)
	require.Len(testInstance, fixture.runner.named(execshell.CommandZip), 1)
	require.Empty(testInstance, fixture.runner.named(execshell.CommandSCP))
	fixture.requireFileExists(testInstance, filepath.Join(fixture.toolkit.Folders().Package, "package.json"))
	fixture.requireFileExists(testInstance, filepath.Join(testSetupFolderConstant, "app-v1.2.3-linux-x64.zip.sha1sum"))
}

func TestDeclaredTasksRunBetweenSetupAndArchive(testInstance *testing.T) {
	profile := testProfile()
	profile.Project.Archive = true
	profile.Project.SkipNPM = true
	fixture := newToolkitFixture(testInstance, profile, utils.ExecutionFlags{})
	fixture.runner.handle = archiveHandler(fixture.fileSystem)

	compiled := false
	registry := sealedBuiltinPipeline(testInstance, fixture, func(builder *tasks.PipelineBuilder) {
		_, declareError := builder.Declare("compile", []string{tasks.DoneTaskIdentifier}, tasks.FuncBody(func(context.Context) error {
			compiled = true
			return nil
		}))
		require.NoError(testInstance, declareError)
	})
	plan, planError := tasks.Linearize(registry, []string{tasks.DefaultTaskIdentifier}, tasks.SweepDeclaredEdges)
	require.NoError(testInstance, planError)

	identifiers := plan.Identifiers()
	require.Equal(testInstance, []string{"origin", "done", "compile", "archive", "default"}, identifiers[len(identifiers)-5:])

	_, runError := tasks.NewRunner(registry).Run(context.Background(), plan)
	require.NoError(testInstance, runError)
	require.True(testInstance, compiled)
}

func TestFailingTaskStopsPipeline(testInstance *testing.T) {
	profile := testProfile()
	fixture := newToolkitFixture(testInstance, profile, utils.ExecutionFlags{})
	fixture.runner.handle = func(command execshell.ShellCommand) (execshell.ExecutionResult, error) {
		return execshell.ExecutionResult{ExitCode: 1, StandardError: "npm ERR! missing script"}, nil
	}

	registry := sealedBuiltinPipeline(testInstance, fixture, nil)
	plan, planError := tasks.Linearize(registry, []string{tasks.DefaultTaskIdentifier}, tasks.SweepDeclaredEdges)
	require.NoError(testInstance, planError)

	outcome, runError := tasks.NewRunner(registry).Run(context.Background(), plan)
	var executionError tasks.TaskExecutionError
	require.ErrorAs(testInstance, runError, &executionError)
	require.Equal(testInstance, packaging.NPMInstallTaskIdentifier, executionError.Identifier)
	failure, failed := outcome.Failure()
	require.True(testInstance, failed)
	require.Equal(testInstance, packaging.NPMInstallTaskIdentifier, failure.Identifier)
	require.Len(testInstance, fixture.runner.named(execshell.CommandNPM), 1)
}

func TestUploadRunsOnlyWhenRequested(testInstance *testing.T) {
	profile := testProfile()
	profile.SCP.Destination = "deploy@example.org:/srv/releases"
	fixture := newToolkitFixture(testInstance, profile, utils.ExecutionFlags{})
	fixture.writeFile(testInstance, filepath.Join(testSetupFolderConstant, "app-v1.2.3-linux-x64.zip"), "zipped")

	registry := sealedBuiltinPipeline(testInstance, fixture, nil)
	plan, planError := tasks.Linearize(registry, []string{packaging.UploadTaskIdentifier}, tasks.SweepDeclaredEdges)
	require.NoError(testInstance, planError)
	require.Equal(testInstance, []string{packaging.UploadTaskIdentifier}, plan.Identifiers())

	_, runError := tasks.NewRunner(registry).Run(context.Background(), plan)
	require.NoError(testInstance, runError)
	require.Len(testInstance, fixture.runner.named(execshell.CommandSCP), 1)
}
