package packaging_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/emanator/internal/execshell"
	"github.com/tyemirov/emanator/internal/packaging"
	"github.com/tyemirov/emanator/internal/utils"
)

func TestLatestArtifact(testInstance *testing.T) {
	testCases := []struct {
		name     string
		names    []string
		expected string
	}{
		{
			name:     "semantic_not_lexical",
			names:    []string{"app-v1.9.0-linux-x64.zip", "app-v1.10.0-linux-x64.zip", "app-v1.2.0-linux-x64.zip"},
			expected: "app-v1.10.0-linux-x64.zip",
		},
		{
			name:     "other_projects_ignored",
			names:    []string{"tool-v9.0.0.zip", "app-v0.1.0.zip"},
			expected: "app-v0.1.0.zip",
		},
		{
			name:  "unversioned_ignored",
			names: []string{"app.zip", "app-latest.zip"},
		},
		{
			name: "empty",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, packaging.LatestArtifact(testCase.names, testIdentifierConstant))
		})
	}
}

func TestHashFileName(testInstance *testing.T) {
	require.Equal(testInstance, "app-v1.0.0.sha1", packaging.HashFileName("app-v1.0.0.zip"))
	require.Equal(testInstance, "app-v1.0.0.tar.sha1", packaging.HashFileName("app-v1.0.0.tar.gz"))
	require.Equal(testInstance, "setup.sha1", packaging.HashFileName("setup"))
}

func TestUploadCopiesNewestArtifactAndHash(testInstance *testing.T) {
	profile := testProfile()
	profile.SCP.Destination = "deploy@example.org:/srv/releases"
	profile.SCP.Port = 2222
	fixture := newToolkitFixture(testInstance, profile, utils.ExecutionFlags{})
	fixture.writeFile(testInstance, filepath.Join(testSetupFolderConstant, "app-v1.2.0-linux-x64.zip"), "old")
	fixture.writeFile(testInstance, filepath.Join(testSetupFolderConstant, "app-v1.10.0-linux-x64.zip"), "new")

	require.NoError(testInstance, fixture.runTask(testInstance, packaging.UploadTaskIdentifier))

	commands := fixture.runner.named(execshell.CommandSCP)
	require.Len(testInstance, commands, 1)
	require.Equal(testInstance,
		[]string{"-P", "2222", "app-v1.10.0-linux-x64.sha1", "app-v1.10.0-linux-x64.zip", profile.SCP.Destination},
		commands[0].Details.Arguments,
	)
	require.Equal(testInstance, testSetupFolderConstant, commands[0].Details.WorkingDirectory)

	fixture.requireFileExists(testInstance, filepath.Join(testSetupFolderConstant, "app-v1.10.0-linux-x64.sha1"))
}

func TestUploadWithoutDestinationIsNoop(testInstance *testing.T) {
	fixture := newToolkitFixture(testInstance, testProfile(), utils.ExecutionFlags{})

	require.NoError(testInstance, fixture.runTask(testInstance, packaging.UploadTaskIdentifier))
	require.Empty(testInstance, fixture.runner.recorded())
}

func TestUploadWithoutArtifactFails(testInstance *testing.T) {
	profile := testProfile()
	profile.SCP.Destination = "deploy@example.org:/srv/releases"
	fixture := newToolkitFixture(testInstance, profile, utils.ExecutionFlags{})
	require.NoError(testInstance, fixture.runTask(testInstance, packaging.InitTaskIdentifier))

	require.ErrorIs(testInstance, fixture.runTask(testInstance, packaging.UploadTaskIdentifier), packaging.ErrSetupArtifactMissing)
}
