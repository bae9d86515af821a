package packaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
)

const (
	projectTypeSeparatorConstant            = "+"
	semanticVersionPrefixConstant           = "v"
	semanticVersionValidationTagConstant    = "semver"
	profileValidationErrorTemplateConstant  = "invalid build profile: %w"
	nwjsVersionMissingMessageConstant       = "build type NWJS requires nwjs.version"
	defaultProjectTypeConstant              = ProjectTypeUtility
	defaultArchiveLevelConstant             = 6
	defaultDestinationFolderNameConstant    = "setup"
	defaultBuildFolderTemplateConstant      = "$IDENT-v$VERSION-$PLATFORM-$ARCH"
	defaultArchiveNameTemplateConstant      = "$IDENT$SUFFIX-v$VERSION-$PLATFORM-$ARCH"
	profileIdentifierMissingMessageConstant = "project.ident must be provided"
)

// Project types recognised by the built-in pipeline.
const (
	ProjectTypeUtility = "UTIL"
	ProjectTypeNWJS    = "NWJS"
	ProjectTypeNode    = "NODE"
)

var (
	// ErrNWJSVersionMissing indicates an NWJS build without a runtime version.
	ErrNWJSVersionMissing = errors.New(nwjsVersionMissingMessageConstant)
	// ErrProfileIdentifierMissing indicates a profile without a project identifier.
	ErrProfileIdentifierMissing = errors.New(profileIdentifierMissingMessageConstant)
)

var profileValidate = newProfileValidator()

func newProfileValidator() *validator.Validate {
	profileValidator := validator.New()
	if registrationError := profileValidator.RegisterValidation(semanticVersionValidationTagConstant, validateSemanticVersion); registrationError != nil {
		panic(registrationError)
	}
	return profileValidator
}

func validateSemanticVersion(field validator.FieldLevel) bool {
	value := strings.TrimSpace(field.Field().String())
	if len(value) == 0 {
		return true
	}
	return semver.IsValid(canonicalVersion(value))
}

// Profile describes the application being packaged.
type Profile struct {
	Project ProjectProfile `mapstructure:"project"`
	NWJS    NWJSProfile    `mapstructure:"nwjs"`
	SCP     SCPProfile     `mapstructure:"scp"`
}

// ProjectProfile carries identity and output settings.
type ProjectProfile struct {
	Identifier    string `mapstructure:"ident" validate:"required,excludesall=/\\"`
	Title         string `mapstructure:"title"`
	Version       string `mapstructure:"version" validate:"semver"`
	Type          string `mapstructure:"type"`
	Suffix        string `mapstructure:"suffix"`
	Folder        bool   `mapstructure:"folder"`
	FolderName    string `mapstructure:"folder_name"`
	Destination   string `mapstructure:"destination"`
	Base          string `mapstructure:"base"`
	Package       string `mapstructure:"package"`
	Archive       bool   `mapstructure:"archive"`
	ArchiveName   string `mapstructure:"archive_name"`
	ArchiveLevel  int    `mapstructure:"archive_level" validate:"gte=0,lte=9"`
	Production    bool   `mapstructure:"production"`
	Standalone    bool   `mapstructure:"standalone"`
	SkipNPM       bool   `mapstructure:"nonpm"`
	LocalBinaries bool   `mapstructure:"local_binaries"`
	Git           string `mapstructure:"git"`
	Author        string `mapstructure:"author"`
}

// NWJSProfile selects the NW.js runtime bundled with the application.
type NWJSProfile struct {
	Version string `mapstructure:"version" validate:"semver"`
	FFmpeg  bool   `mapstructure:"ffmpeg"`
	SDK     bool   `mapstructure:"sdk"`
}

// SCPProfile describes where upload copies the newest setup artifact.
type SCPProfile struct {
	Destination string `mapstructure:"dest"`
	Port        int    `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// DefaultProfileValues returns configuration defaults keyed by their configuration path.
func DefaultProfileValues() map[string]any {
	return map[string]any{
		"project.type":          defaultProjectTypeConstant,
		"project.destination":   defaultDestinationFolderNameConstant,
		"project.archive_level": defaultArchiveLevelConstant,
		"project.folder_name":   defaultBuildFolderTemplateConstant,
		"project.archive_name":  defaultArchiveNameTemplateConstant,
	}
}

// Normalize fills unset optional fields with their defaults.
func (profile Profile) Normalize() Profile {
	profile.Project.Identifier = strings.TrimSpace(profile.Project.Identifier)
	if len(strings.TrimSpace(profile.Project.Type)) == 0 {
		profile.Project.Type = defaultProjectTypeConstant
	}
	if len(strings.TrimSpace(profile.Project.Destination)) == 0 {
		profile.Project.Destination = defaultDestinationFolderNameConstant
	}
	if len(strings.TrimSpace(profile.Project.FolderName)) == 0 {
		profile.Project.FolderName = defaultBuildFolderTemplateConstant
	}
	if len(strings.TrimSpace(profile.Project.ArchiveName)) == 0 {
		profile.Project.ArchiveName = defaultArchiveNameTemplateConstant
	}
	return profile
}

// Validate checks the profile against its field rules.
func (profile Profile) Validate() error {
	if len(strings.TrimSpace(profile.Project.Identifier)) == 0 {
		return fmt.Errorf(profileValidationErrorTemplateConstant, ErrProfileIdentifierMissing)
	}
	if validationError := profileValidate.Struct(profile); validationError != nil {
		return fmt.Errorf(profileValidationErrorTemplateConstant, validationError)
	}
	if profile.HasType(ProjectTypeNWJS) && len(strings.TrimSpace(profile.NWJS.Version)) == 0 {
		return fmt.Errorf(profileValidationErrorTemplateConstant, ErrNWJSVersionMissing)
	}
	return nil
}

// Types returns the set of project types named by the plus-separated type field.
func (profile Profile) Types() map[string]bool {
	types := map[string]bool{}
	for _, projectType := range strings.Split(profile.Project.Type, projectTypeSeparatorConstant) {
		trimmed := strings.ToUpper(strings.TrimSpace(projectType))
		if len(trimmed) == 0 {
			continue
		}
		types[trimmed] = true
	}
	return types
}

// HasType reports whether the profile includes projectType.
func (profile Profile) HasType(projectType string) bool {
	return profile.Types()[strings.ToUpper(projectType)]
}

// DisplayTitle returns the title, falling back to the capitalised identifier.
func (profile Profile) DisplayTitle() string {
	if title := strings.TrimSpace(profile.Project.Title); len(title) > 0 {
		return title
	}
	identifier := profile.Project.Identifier
	if len(identifier) == 0 {
		return identifier
	}
	return strings.ToUpper(identifier[:1]) + identifier[1:]
}

func canonicalVersion(version string) string {
	trimmed := strings.TrimSpace(version)
	if strings.HasPrefix(trimmed, semanticVersionPrefixConstant) {
		return trimmed
	}
	return semanticVersionPrefixConstant + trimmed
}
