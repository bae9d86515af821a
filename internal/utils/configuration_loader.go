package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorConstant                = "_"
	configurationKeySeparatorConstant              = "."
	sliceDecodeSeparatorConstant                   = ","
	embeddedConfigurationReadErrorTemplateConstant = "unable to read embedded configuration: %w"
	configurationFileReadErrorTemplateConstant     = "unable to read configuration file %s: %w"
	configurationSearchReadErrorTemplateConstant   = "unable to read configuration from search paths: %w"
	configurationDecodeErrorTemplateConstant       = "unable to decode configuration: %w"
	configurationTargetMissingMessageConstant      = "configuration target must be provided"
)

// ErrConfigurationTargetMissing indicates LoadConfiguration received a nil target.
var ErrConfigurationTargetMissing = errors.New(configurationTargetMissingMessageConstant)

// LoadedConfiguration describes where configuration values were read from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers defaults, embedded configuration, a configuration file
// and environment variables, in increasing precedence.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	embeddedConfigurationData []byte
	embeddedConfigurationType string
}

// NewConfigurationLoader constructs a ConfigurationLoader.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string(nil), searchPaths...),
	}
}

// SetEmbeddedConfiguration registers configuration content compiled into the binary.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(data []byte, configurationType string) {
	loader.embeddedConfigurationData = append([]byte(nil), data...)
	loader.embeddedConfigurationType = configurationType
}

// LoadConfiguration decodes the layered configuration into target. An explicit
// configurationFilePath bypasses the search paths.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	if target == nil {
		return LoadedConfiguration{}, ErrConfigurationTargetMissing
	}

	configurationViper := viper.New()
	for key, value := range defaultValues {
		configurationViper.SetDefault(key, value)
	}

	if len(loader.embeddedConfigurationData) > 0 {
		configurationViper.SetConfigType(loader.embeddedConfigurationType)
		if readError := configurationViper.MergeConfig(bytes.NewReader(loader.embeddedConfigurationData)); readError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationReadErrorTemplateConstant, readError)
		}
	}

	if len(loader.environmentPrefix) > 0 {
		configurationViper.SetEnvPrefix(loader.environmentPrefix)
	}
	configurationViper.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	configurationViper.AutomaticEnv()

	loadedConfiguration := LoadedConfiguration{}
	trimmedFilePath := strings.TrimSpace(configurationFilePath)
	if len(trimmedFilePath) > 0 {
		configurationViper.SetConfigFile(trimmedFilePath)
		if mergeError := configurationViper.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationFileReadErrorTemplateConstant, trimmedFilePath, mergeError)
		}
		loadedConfiguration.ConfigFileUsed = configurationViper.ConfigFileUsed()
	} else if len(loader.searchPaths) > 0 {
		configurationViper.SetConfigName(loader.configurationName)
		configurationViper.SetConfigType(loader.configurationType)
		for _, searchPath := range loader.searchPaths {
			if len(strings.TrimSpace(searchPath)) == 0 {
				continue
			}
			configurationViper.AddConfigPath(searchPath)
		}
		mergeError := configurationViper.MergeInConfig()
		switch {
		case mergeError == nil:
			loadedConfiguration.ConfigFileUsed = configurationViper.ConfigFileUsed()
		case errors.As(mergeError, &viper.ConfigFileNotFoundError{}):
		default:
			return LoadedConfiguration{}, fmt.Errorf(configurationSearchReadErrorTemplateConstant, mergeError)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(sliceDecodeSeparatorConstant),
	))
	if decodeError := configurationViper.Unmarshal(target, decodeHook); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	return loadedConfiguration, nil
}
