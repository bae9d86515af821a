package tasks

import "strings"

// DefaultTaskIdentifier names the aggregate default pipeline. It never receives a body.
const DefaultTaskIdentifier = "default"

// Descriptor describes a registered unit of work.
type Descriptor struct {
	Identifier string
	// Prerequisites is the live edge set consulted by the scheduler.
	Prerequisites []string
	// DeclaredPrerequisites is an independent copy of the edges as registered.
	DeclaredPrerequisites []string
	Body                  Body
}

// Registry maps identifiers to descriptors. It is append-only.
type Registry struct {
	descriptors map[string]*Descriptor
	order       []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register adds a task. A nil body is replaced with a no-op body except for the
// aggregate default identifier. Prerequisite existence is validated by the scheduler.
func (registry *Registry) Register(identifier string, prerequisites []string, body Body) (*Descriptor, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	trimmedIdentifier := strings.TrimSpace(identifier)
	if len(trimmedIdentifier) == 0 {
		return nil, ErrEmptyIdentifier
	}
	if _, exists := registry.descriptors[trimmedIdentifier]; exists {
		return nil, DuplicateTaskError{Identifier: trimmedIdentifier}
	}

	if body == nil && trimmedIdentifier != DefaultTaskIdentifier {
		body = NoopBody()
	}

	descriptor := &Descriptor{
		Identifier:            trimmedIdentifier,
		Prerequisites:         copyIdentifiers(prerequisites),
		DeclaredPrerequisites: copyIdentifiers(prerequisites),
		Body:                  body,
	}
	registry.descriptors[trimmedIdentifier] = descriptor
	registry.order = append(registry.order, trimmedIdentifier)
	return descriptor, nil
}

// Lookup returns the descriptor registered under identifier.
func (registry *Registry) Lookup(identifier string) (*Descriptor, bool) {
	if registry == nil {
		return nil, false
	}
	descriptor, exists := registry.descriptors[strings.TrimSpace(identifier)]
	return descriptor, exists
}

// Identifiers returns registered identifiers in registration order.
func (registry *Registry) Identifiers() []string {
	if registry == nil {
		return nil
	}
	return copyIdentifiers(registry.order)
}

// Len returns the number of registered tasks.
func (registry *Registry) Len() int {
	if registry == nil {
		return 0
	}
	return len(registry.order)
}

func copyIdentifiers(identifiers []string) []string {
	if identifiers == nil {
		return nil
	}
	copied := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		trimmed := strings.TrimSpace(identifier)
		if len(trimmed) == 0 {
			continue
		}
		copied = append(copied, trimmed)
	}
	return copied
}
