package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/emanator/cmd/cli"
	"github.com/tyemirov/emanator/internal/packaging"
	"github.com/tyemirov/emanator/internal/utils"
)

const (
	testEnvironmentPrefixConstant = "EMANATE"
	testConfigurationNameConstant = "config"
	testConfigurationTypeConstant = "yaml"
	testConfigurationFileConstant = "config.yaml"
)

func newEmanateLoader(searchPaths ...string) *utils.ConfigurationLoader {
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, searchPaths)
	embeddedData, embeddedType := cli.EmbeddedDefaultConfiguration()
	loader.SetEmbeddedConfiguration(embeddedData, embeddedType)
	return loader
}

func writeConfiguration(t *testing.T, directory string, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(directory, 0o755))
	path := filepath.Join(directory, testConfigurationFileConstant)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigurationLoaderLayersEmbeddedFileAndEnvironment(t *testing.T) {
	testCases := []struct {
		name            string
		fileContent     string
		environment     map[string]string
		expectedLevel   string
		expectedFormat  string
		expectedArchive bool
		expectedSweep   string
	}{
		{
			name:           "embedded_defaults",
			expectedLevel:  "error",
			expectedFormat: "structured",
			expectedSweep:  "declared-edges",
		},
		{
			name:            "file_overrides_embedded",
			fileContent:     "common:\n  log_level: debug\nproject:\n  ident: notes\n  archive: true\nscheduling:\n  sweep: all\n",
			expectedLevel:   "debug",
			expectedFormat:  "structured",
			expectedArchive: true,
			expectedSweep:   "all",
		},
		{
			name:        "environment_overrides_file",
			fileContent: "common:\n  log_level: debug\nproject:\n  ident: notes\n  archive: true\n",
			environment: map[string]string{
				"EMANATE_COMMON_LOG_FORMAT": "console",
				"EMANATE_PROJECT_ARCHIVE":   "false",
			},
			expectedLevel:  "debug",
			expectedFormat: "console",
			expectedSweep:  "declared-edges",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			for name, value := range testCase.environment {
				t.Setenv(name, value)
			}
			configurationPath := ""
			if len(testCase.fileContent) > 0 {
				configurationPath = writeConfiguration(t, t.TempDir(), testCase.fileContent)
			}

			configuration := cli.ApplicationConfiguration{}
			metadata, loadError := newEmanateLoader().LoadConfiguration(configurationPath, packaging.DefaultProfileValues(), &configuration)
			require.NoError(t, loadError)
			require.Equal(t, configurationPath, metadata.ConfigFileUsed)

			require.Equal(t, testCase.expectedLevel, configuration.Common.LogLevel)
			require.Equal(t, testCase.expectedFormat, configuration.Common.LogFormat)
			require.Equal(t, testCase.expectedArchive, configuration.Project.Archive)
			require.Equal(t, testCase.expectedSweep, configuration.Scheduling.Sweep)
			require.True(t, configuration.Scheduling.StreamErrorsFail)
			require.Equal(t, 6, configuration.Project.ArchiveLevel)
		})
	}
}

func TestConfigurationLoaderSplitsSingleStringCommands(t *testing.T) {
	configurationPath := writeConfiguration(t, t.TempDir(),
		"pipeline:\n  commands:\n    lint:\n      command: npm run lint\n    notarize:\n      command: [xcrun, notarytool, submit]\n      folder: setup\n")

	configuration := cli.ApplicationConfiguration{}
	_, loadError := newEmanateLoader().LoadConfiguration(configurationPath, nil, &configuration)
	require.NoError(t, loadError)

	require.Equal(t, []string{"npm run lint"}, configuration.Pipeline.Commands["lint"].Command)
	require.Equal(t, []string{"xcrun", "notarytool", "submit"}, configuration.Pipeline.Commands["notarize"].Command)
	require.Equal(t, "setup", configuration.Pipeline.Commands["notarize"].Folder)
}

func TestConfigurationLoaderSearchOrder(t *testing.T) {
	workingDirectory := t.TempDir()
	userDirectory := filepath.Join(t.TempDir(), ".emanate")

	userPath := writeConfiguration(t, userDirectory, "project:\n  ident: from-user\n")
	configuration := cli.ApplicationConfiguration{}
	metadata, loadError := newEmanateLoader(workingDirectory, userDirectory).LoadConfiguration("", nil, &configuration)
	require.NoError(t, loadError)
	require.Equal(t, userPath, metadata.ConfigFileUsed)
	require.Equal(t, "from-user", configuration.Project.Identifier)

	workingPath := writeConfiguration(t, workingDirectory, "project:\n  ident: from-working\n")
	configuration = cli.ApplicationConfiguration{}
	metadata, loadError = newEmanateLoader(workingDirectory, userDirectory).LoadConfiguration("", nil, &configuration)
	require.NoError(t, loadError)
	require.Equal(t, workingPath, metadata.ConfigFileUsed)
	require.Equal(t, "from-working", configuration.Project.Identifier)

	explicitPath := writeConfiguration(t, t.TempDir(), "project:\n  ident: explicit\n")
	configuration = cli.ApplicationConfiguration{}
	metadata, loadError = newEmanateLoader(workingDirectory, userDirectory).LoadConfiguration(explicitPath, nil, &configuration)
	require.NoError(t, loadError)
	require.Equal(t, explicitPath, metadata.ConfigFileUsed)
	require.Equal(t, "explicit", configuration.Project.Identifier)
}

func TestConfigurationLoaderRejectsMissingTargetAndBrokenFiles(t *testing.T) {
	loader := newEmanateLoader()

	_, loadError := loader.LoadConfiguration("", nil, nil)
	require.ErrorIs(t, loadError, utils.ErrConfigurationTargetMissing)

	brokenPath := writeConfiguration(t, t.TempDir(), "pipeline: [unterminated\n")
	_, loadError = loader.LoadConfiguration(brokenPath, nil, &cli.ApplicationConfiguration{})
	require.ErrorContains(t, loadError, brokenPath)
}
