package tasks

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DoneTaskIdentifier names the anchor marking the end of the generic setup stage.
const DoneTaskIdentifier = "done"

const (
	pipelineEntryTypeErrorTemplateConstant         = "pipeline entry %d: unsupported value of type %T"
	pipelineEntryKeyCountErrorTemplateConstant     = "pipeline entry %d: keyed entry must contain exactly one identifier, found %d"
	pipelineEntryPrerequisiteErrorTemplateConstant = "pipeline entry %d: prerequisites of %q must be strings"
	pipelineEntryDecodeErrorTemplateConstant       = "pipeline entry %d: %w"
)

// ErrPipelineDescriptionNotSequence is returned when a YAML pipeline description is not a sequence.
var ErrPipelineDescriptionNotSequence = errors.New("pipeline description must be a YAML sequence")

// PipelineEntry is one element of a declarative pipeline. A bare entry chains to the
// preceding entry; a keyed entry carries an explicit prerequisite list.
type PipelineEntry struct {
	Identifier    string
	Prerequisites []string
	Keyed         bool
}

// Bare constructs a chained entry.
func Bare(identifier string) PipelineEntry {
	return PipelineEntry{Identifier: identifier}
}

// Keyed constructs an entry with explicit prerequisites.
func Keyed(identifier string, prerequisites ...string) PipelineEntry {
	if len(prerequisites) == 0 {
		prerequisites = nil
	}
	return PipelineEntry{Identifier: identifier, Prerequisites: prerequisites, Keyed: true}
}

// Omitted reports whether the entry was filtered out (false or null in the description).
func (entry PipelineEntry) Omitted() bool {
	return len(strings.TrimSpace(entry.Identifier)) == 0
}

// PipelineDescription is an ordered list of pipeline entries.
type PipelineDescription []PipelineEntry

// Filter drops omitted entries.
func (description PipelineDescription) Filter() PipelineDescription {
	filtered := make(PipelineDescription, 0, len(description))
	for _, entry := range description {
		if entry.Omitted() {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// Identifiers returns the identifiers of non-omitted entries in order.
func (description PipelineDescription) Identifiers() []string {
	identifiers := make([]string, 0, len(description))
	for _, entry := range description.Filter() {
		identifiers = append(identifiers, strings.TrimSpace(entry.Identifier))
	}
	return identifiers
}

// UnmarshalYAML decodes a sequence of scalars, single-key mappings and false/null values.
func (description *PipelineDescription) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return ErrPipelineDescriptionNotSequence
	}
	values := make([]any, 0, len(node.Content))
	for index, itemNode := range node.Content {
		var value any
		if err := itemNode.Decode(&value); err != nil {
			return fmt.Errorf(pipelineEntryDecodeErrorTemplateConstant, index, err)
		}
		values = append(values, value)
	}
	parsed, err := ParsePipelineDescription(values)
	if err != nil {
		return err
	}
	*description = parsed
	return nil
}

// ParsePipelineDescription converts loosely typed configuration values into a description.
// Strings are bare entries, single-key maps are keyed entries, false and nil are omitted.
func ParsePipelineDescription(values []any) (PipelineDescription, error) {
	description := make(PipelineDescription, 0, len(values))
	for index, value := range values {
		entry, err := parsePipelineEntry(index, value)
		if err != nil {
			return nil, err
		}
		description = append(description, entry)
	}
	return description, nil
}

func parsePipelineEntry(index int, value any) (PipelineEntry, error) {
	switch typed := value.(type) {
	case nil:
		return PipelineEntry{}, nil
	case bool:
		if !typed {
			return PipelineEntry{}, nil
		}
		return PipelineEntry{}, fmt.Errorf(pipelineEntryTypeErrorTemplateConstant, index, value)
	case string:
		return Bare(strings.TrimSpace(typed)), nil
	case map[string]any:
		if len(typed) != 1 {
			return PipelineEntry{}, fmt.Errorf(pipelineEntryKeyCountErrorTemplateConstant, index, len(typed))
		}
		for identifier, rawPrerequisites := range typed {
			prerequisites, err := parsePrerequisites(index, identifier, rawPrerequisites)
			if err != nil {
				return PipelineEntry{}, err
			}
			return Keyed(strings.TrimSpace(identifier), prerequisites...), nil
		}
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for key, nested := range typed {
			converted[fmt.Sprint(key)] = nested
		}
		return parsePipelineEntry(index, converted)
	}
	return PipelineEntry{}, fmt.Errorf(pipelineEntryTypeErrorTemplateConstant, index, value)
}

func parsePrerequisites(index int, identifier string, rawPrerequisites any) ([]string, error) {
	switch typed := rawPrerequisites.(type) {
	case nil:
		return []string{}, nil
	case string:
		return []string{strings.TrimSpace(typed)}, nil
	case []string:
		return copyIdentifiers(typed), nil
	case []any:
		prerequisites := make([]string, 0, len(typed))
		for _, item := range typed {
			prerequisite, isString := item.(string)
			if !isString {
				return nil, fmt.Errorf(pipelineEntryPrerequisiteErrorTemplateConstant, index, identifier)
			}
			prerequisites = append(prerequisites, strings.TrimSpace(prerequisite))
		}
		return prerequisites, nil
	default:
		return nil, fmt.Errorf(pipelineEntryPrerequisiteErrorTemplateConstant, index, identifier)
	}
}

// BodyResolver supplies task bodies for identifiers compiled from a description.
type BodyResolver interface {
	ResolveBody(identifier string) (Body, bool)
}

// BodyResolverFunc adapts a function to BodyResolver.
type BodyResolverFunc func(identifier string) (Body, bool)

// ResolveBody implements BodyResolver.
func (resolver BodyResolverFunc) ResolveBody(identifier string) (Body, bool) {
	return resolver(identifier)
}

// CompileList registers every entry of description. Bare entries depend on the
// previous entry; keyed entries get exactly their listed prerequisites.
func CompileList(registry *Registry, description PipelineDescription) error {
	_, err := compileEntries(registry, description, nil, nil, "")
	return err
}

// compileEntries registers entries and returns the identifier the chain ended on.
// Identifiers in passthrough only move the chain pointer.
func compileEntries(registry *Registry, description PipelineDescription, resolver BodyResolver, passthrough map[string]struct{}, previous string) (string, error) {
	if registry == nil {
		return previous, ErrNilRegistry
	}
	for _, entry := range description.Filter() {
		identifier := strings.TrimSpace(entry.Identifier)
		if _, skip := passthrough[identifier]; skip {
			previous = identifier
			continue
		}

		var prerequisites []string
		switch {
		case entry.Keyed:
			prerequisites = copyIdentifiers(entry.Prerequisites)
			if prerequisites == nil {
				prerequisites = []string{}
			}
		case len(previous) > 0:
			prerequisites = []string{previous}
		}

		if _, err := registry.Register(identifier, prerequisites, resolveBody(resolver, identifier)); err != nil {
			return previous, err
		}
		previous = identifier
	}
	return previous, nil
}

func resolveBody(resolver BodyResolver, identifier string) Body {
	if resolver == nil {
		return nil
	}
	body, found := resolver.ResolveBody(identifier)
	if !found {
		return nil
	}
	return body
}

// PipelineBuilder composes the root, application and platform stages and the tasks a
// caller declares between them. Sealing freezes the structure.
type PipelineBuilder struct {
	registry     *Registry
	resolver     BodyResolver
	root         PipelineDescription
	application  PipelineDescription
	platform     PipelineDescription
	lastUserTask string
	sealed       bool
}

// NewPipelineBuilder constructs a builder over registry.
func NewPipelineBuilder(registry *Registry, resolver BodyResolver) *PipelineBuilder {
	if registry == nil {
		registry = NewRegistry()
	}
	return &PipelineBuilder{registry: registry, resolver: resolver}
}

// Registry returns the registry the builder populates.
func (builder *PipelineBuilder) Registry() *Registry {
	return builder.registry
}

// Root replaces the generic setup stage.
func (builder *PipelineBuilder) Root(description PipelineDescription) error {
	if builder.sealed {
		return ErrPipelineSealed
	}
	builder.root = append(PipelineDescription{}, description...)
	return nil
}

// Application replaces the application stage.
func (builder *PipelineBuilder) Application(description PipelineDescription) error {
	if builder.sealed {
		return ErrPipelineSealed
	}
	builder.application = append(PipelineDescription{}, description...)
	return nil
}

// Platform replaces the platform finishing stage.
func (builder *PipelineBuilder) Platform(description PipelineDescription) error {
	if builder.sealed {
		return ErrPipelineSealed
	}
	builder.platform = append(PipelineDescription{}, description...)
	return nil
}

// Declare registers a user task and makes it the splice point for the platform stage.
func (builder *PipelineBuilder) Declare(identifier string, prerequisites []string, body Body) (*Descriptor, error) {
	if builder.sealed {
		return nil, ErrPipelineSealed
	}
	descriptor, err := builder.registry.Register(identifier, prerequisites, body)
	if err != nil {
		return nil, err
	}
	builder.lastUserTask = descriptor.Identifier
	return descriptor, nil
}

// LastUserTask returns the most recently declared user task.
func (builder *PipelineBuilder) LastUserTask() string {
	return builder.lastUserTask
}

// SealedPipeline is the frozen result of PipelineBuilder.Seal.
type SealedPipeline struct {
	Registry *Registry
	// SplicePoint is the identifier the platform stage is anchored to.
	SplicePoint string
	// Platform is the platform stage including the splice point.
	Platform []string
}

// Seal compiles the stages in order, registers the done anchor after the last
// application task and the aggregate default task, and rejects further declarations.
func (builder *PipelineBuilder) Seal() (SealedPipeline, error) {
	if builder.sealed {
		return SealedPipeline{}, ErrPipelineSealed
	}
	builder.sealed = true

	splicePoint := builder.lastUserTask
	if len(splicePoint) == 0 {
		splicePoint = DoneTaskIdentifier
	}

	platform := append(PipelineDescription{Bare(splicePoint)}, builder.platform.Filter()...)
	passthrough := map[string]struct{}{
		splicePoint:        {},
		DoneTaskIdentifier: {},
	}

	lastRootTask, err := compileEntries(builder.registry, builder.root, builder.resolver, passthrough, "")
	if err != nil {
		return SealedPipeline{}, err
	}
	previous, err := compileEntries(builder.registry, builder.application, builder.resolver, passthrough, lastRootTask)
	if err != nil {
		return SealedPipeline{}, err
	}
	if _, err := compileEntries(builder.registry, platform, builder.resolver, passthrough, previous); err != nil {
		return SealedPipeline{}, err
	}

	// done waits for the application stage so declared tasks and the platform
	// stage never start before it.
	doneAfter := previous
	if dependsOn(builder.registry, doneAfter, DoneTaskIdentifier) {
		doneAfter = lastRootTask
	}
	if _, exists := builder.registry.Lookup(DoneTaskIdentifier); !exists {
		var donePrerequisites []string
		if len(doneAfter) > 0 {
			donePrerequisites = []string{doneAfter}
		}
		if _, err := builder.registry.Register(DoneTaskIdentifier, donePrerequisites, nil); err != nil {
			return SealedPipeline{}, err
		}
	}

	platformIdentifiers := platform.Identifiers()
	if _, err := builder.registry.Register(DefaultTaskIdentifier, platformIdentifiers, nil); err != nil {
		return SealedPipeline{}, err
	}

	return SealedPipeline{
		Registry:    builder.registry,
		SplicePoint: splicePoint,
		Platform:    platformIdentifiers,
	}, nil
}

// dependsOn reports whether identifier is target or reaches it through registered
// prerequisites.
func dependsOn(registry *Registry, identifier string, target string) bool {
	visited := map[string]struct{}{}
	pending := []string{identifier}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if current == target {
			return true
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		if descriptor, exists := registry.Lookup(current); exists {
			pending = append(pending, descriptor.Prerequisites...)
		}
	}
	return false
}
