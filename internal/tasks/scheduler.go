package tasks

import (
	"fmt"
	"strings"
)

// SweepPolicy selects the tasks considered when no identifiers are requested.
type SweepPolicy string

const (
	// SweepDeclaredEdges considers tasks with at least one prerequisite and everything they reference.
	SweepDeclaredEdges SweepPolicy = SweepPolicy("declared-edges")
	// SweepAll considers every registered task.
	SweepAll SweepPolicy = SweepPolicy("all")
)

const unsupportedSweepPolicyErrorTemplateConstant = "unsupported sweep policy %q (expected %s or %s)"

// ParseSweepPolicy converts a configuration value into a SweepPolicy. Empty input yields the default.
func ParseSweepPolicy(value string) (SweepPolicy, error) {
	switch SweepPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", SweepDeclaredEdges:
		return SweepDeclaredEdges, nil
	case SweepAll:
		return SweepAll, nil
	default:
		return "", fmt.Errorf(unsupportedSweepPolicyErrorTemplateConstant, value, SweepDeclaredEdges, SweepAll)
	}
}

// Plan is an ordered list of task identifiers. Plans are never consumed in place.
type Plan []string

// Len returns the number of planned identifiers.
func (plan Plan) Len() int {
	return len(plan)
}

// Identifiers returns a copy of the planned identifiers.
func (plan Plan) Identifiers() []string {
	return append([]string(nil), plan...)
}

type scheduleNode struct {
	identifier    string
	rank          int
	prerequisites []string
}

type scheduleGraph struct {
	nodes   map[string]*scheduleNode
	ordered []*scheduleNode
}

func newScheduleGraph() *scheduleGraph {
	return &scheduleGraph{nodes: make(map[string]*scheduleNode)}
}

func (graph *scheduleGraph) add(identifier string, rank int, prerequisites []string) *scheduleNode {
	if node, exists := graph.nodes[identifier]; exists {
		if prerequisites != nil && node.prerequisites == nil {
			node.prerequisites = prerequisites
		}
		return node
	}
	node := &scheduleNode{identifier: identifier, rank: rank, prerequisites: prerequisites}
	graph.nodes[identifier] = node
	graph.ordered = append(graph.ordered, node)
	return node
}

// Linearize computes the execution plan for requested identifiers. Every identifier
// appears after all of its transitive prerequisites; ties are broken by registration
// order. An empty request sweeps the registry according to policy. Prerequisites that
// were never registered stay in the plan as placeholders.
func Linearize(registry *Registry, requested []string, policy SweepPolicy) (Plan, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	ranks := make(map[string]int, registry.Len())
	for index, identifier := range registry.order {
		ranks[identifier] = index
	}
	placeholderRank := registry.Len()
	rankOf := func(identifier string) int {
		if rank, exists := ranks[identifier]; exists {
			return rank
		}
		ranks[identifier] = placeholderRank
		placeholderRank++
		return ranks[identifier]
	}

	graph := newScheduleGraph()
	requestedIdentifiers := copyIdentifiers(requested)

	if len(requestedIdentifiers) == 0 {
		for _, identifier := range registry.order {
			descriptor := registry.descriptors[identifier]
			prerequisites := sanitizePrerequisites(descriptor)
			if len(prerequisites) == 0 && policy != SweepAll {
				continue
			}
			graph.add(identifier, rankOf(identifier), prerequisites)
			for _, prerequisite := range prerequisites {
				prerequisiteNode := graph.add(prerequisite, rankOf(prerequisite), nil)
				if prerequisiteDescriptor, exists := registry.descriptors[prerequisite]; exists && prerequisiteNode.prerequisites == nil {
					prerequisiteNode.prerequisites = sanitizePrerequisites(prerequisiteDescriptor)
				}
			}
		}
		return sortScheduleGraph(graph)
	}

	for _, identifier := range requestedIdentifiers {
		if _, exists := registry.descriptors[identifier]; !exists {
			return nil, UnknownTaskError{Identifier: identifier}
		}
	}

	visited := make(map[string]struct{})
	var visit func(identifier string)
	visit = func(identifier string) {
		if _, seen := visited[identifier]; seen {
			return
		}
		visited[identifier] = struct{}{}
		descriptor, exists := registry.descriptors[identifier]
		if !exists {
			graph.add(identifier, rankOf(identifier), nil)
			return
		}
		prerequisites := sanitizePrerequisites(descriptor)
		graph.add(identifier, rankOf(identifier), prerequisites)
		for _, prerequisite := range prerequisites {
			visit(prerequisite)
		}
	}
	for _, identifier := range requestedIdentifiers {
		visit(identifier)
	}

	return sortScheduleGraph(graph)
}

func sanitizePrerequisites(descriptor *Descriptor) []string {
	if descriptor == nil {
		return nil
	}
	sanitized := make([]string, 0, len(descriptor.Prerequisites))
	seen := make(map[string]struct{}, len(descriptor.Prerequisites))
	for _, prerequisite := range descriptor.Prerequisites {
		name := strings.TrimSpace(prerequisite)
		if len(name) == 0 {
			continue
		}
		if _, duplicate := seen[name]; duplicate {
			continue
		}
		seen[name] = struct{}{}
		sanitized = append(sanitized, name)
	}
	return sanitized
}

// sortScheduleGraph runs Kahn's algorithm, always emitting the ready node with the
// lowest rank.
func sortScheduleGraph(graph *scheduleGraph) (Plan, error) {
	if len(graph.ordered) == 0 {
		return Plan{}, nil
	}

	inDegree := make(map[string]int, len(graph.ordered))
	dependents := make(map[string][]string, len(graph.ordered))
	for _, node := range graph.ordered {
		for _, prerequisite := range node.prerequisites {
			if _, exists := graph.nodes[prerequisite]; !exists {
				continue
			}
			inDegree[node.identifier]++
			dependents[prerequisite] = append(dependents[prerequisite], node.identifier)
		}
	}

	ready := make([]*scheduleNode, 0)
	for _, node := range graph.ordered {
		if inDegree[node.identifier] == 0 {
			ready = insertByRank(ready, node)
		}
	}

	plan := make(Plan, 0, len(graph.ordered))
	emitted := make(map[string]struct{}, len(graph.ordered))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		plan = append(plan, next.identifier)
		emitted[next.identifier] = struct{}{}

		for _, dependent := range dependents[next.identifier] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertByRank(ready, graph.nodes[dependent])
			}
		}
	}

	if len(plan) != len(graph.ordered) {
		unresolved := make([]string, 0, len(graph.ordered)-len(plan))
		for _, node := range sortedByRank(graph.ordered) {
			if _, done := emitted[node.identifier]; !done {
				unresolved = append(unresolved, node.identifier)
			}
		}
		return nil, CyclicDependencyError{Identifiers: unresolved}
	}
	return plan, nil
}

func insertByRank(ready []*scheduleNode, node *scheduleNode) []*scheduleNode {
	position := len(ready)
	for index, candidate := range ready {
		if node.rank < candidate.rank {
			position = index
			break
		}
	}
	ready = append(ready, nil)
	copy(ready[position+1:], ready[position:])
	ready[position] = node
	return ready
}

func sortedByRank(nodes []*scheduleNode) []*scheduleNode {
	sorted := make([]*scheduleNode, 0, len(nodes))
	for _, node := range nodes {
		sorted = insertByRank(sorted, node)
	}
	return sorted
}
