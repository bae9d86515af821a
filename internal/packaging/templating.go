package packaging

import (
	"regexp"
	"sort"
	"strings"
)

const templateVariablePrefixConstant = `\$`

// Template variable names understood by StringResolver.
const (
	TemplateVariableIdentifier           = "IDENT"
	TemplateVariableName                 = "NAME"
	TemplateVariableTitle                = "TITLE"
	TemplateVariableVersion              = "VERSION"
	TemplateVariableNWJSVersion          = "NWJS-VERSION"
	TemplateVariableNWJSSuffix           = "NWJS-SUFFIX"
	TemplateVariableNWJSPlatform         = "NWJS-PLATFORM"
	TemplateVariablePlatform             = "PLATFORM"
	TemplateVariableArchitecture         = "ARCH"
	TemplateVariablePlatformArchitecture = "PLATFORM-ARCH"
	TemplateVariableSuffix               = "SUFFIX"
	TemplateVariableExtension            = "EXTENSION"
)

// StringResolver substitutes $VARIABLE references, matching names case-insensitively.
type StringResolver struct {
	values   map[string]string
	patterns map[string]*regexp.Regexp
}

// NewStringResolver builds the variable table for a profile on a host.
func NewStringResolver(profile Profile, host HostPlatform, version string) StringResolver {
	values := map[string]string{
		TemplateVariableIdentifier:           profile.Project.Identifier,
		TemplateVariableName:                 profile.Project.Identifier,
		TemplateVariableTitle:                profile.DisplayTitle(),
		TemplateVariableVersion:              version,
		TemplateVariableNWJSVersion:          profile.NWJS.Version,
		TemplateVariableNWJSSuffix:           host.NWJSSuffix(),
		TemplateVariableNWJSPlatform:         host.NWJSSuffix(),
		TemplateVariablePlatform:             host.Platform,
		TemplateVariableArchitecture:         host.Architecture,
		TemplateVariablePlatformArchitecture: host.PlatformArchitecture(),
		TemplateVariableSuffix:               profile.Project.Suffix,
	}
	patterns := make(map[string]*regexp.Regexp, len(values)+1)
	for name := range values {
		patterns[name] = variablePattern(name)
	}
	patterns[TemplateVariableExtension] = variablePattern(TemplateVariableExtension)
	return StringResolver{values: values, patterns: patterns}
}

func variablePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + templateVariablePrefixConstant + regexp.QuoteMeta(name))
}

// Resolve replaces every known variable in template. Custom values override the
// table. Longer names are substituted first so $PLATFORM-ARCH wins over $PLATFORM.
func (resolver StringResolver) Resolve(template string, custom map[string]string) string {
	values := make(map[string]string, len(resolver.values)+len(custom))
	for name, value := range resolver.values {
		values[strings.ToUpper(name)] = value
	}
	for name, value := range custom {
		values[strings.ToUpper(name)] = value
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Slice(names, func(left int, right int) bool {
		if len(names[left]) != len(names[right]) {
			return len(names[left]) > len(names[right])
		}
		return names[left] < names[right]
	})

	resolved := template
	for _, name := range names {
		pattern, compiled := resolver.patterns[name]
		if !compiled {
			pattern = variablePattern(name)
		}
		replacement := values[name]
		resolved = pattern.ReplaceAllStringFunc(resolved, func(string) string { return replacement })
	}
	return resolved
}
