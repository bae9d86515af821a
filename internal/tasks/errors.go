package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	duplicateTaskErrorTemplateConstant      = "duplicate task %q"
	unknownTaskErrorTemplateConstant        = "task %q not found"
	cyclicDependencyErrorTemplateConstant   = "task dependencies contain cycle among: %s"
	taskExecutionErrorTemplateConstant      = "task %q failed after %s: %v"
	emptyIdentifierMessageConstant          = "task identifier must be provided"
	pipelineSealedMessageConstant           = "pipeline is sealed; no further tasks may be declared"
	nilRegistryMessageConstant              = "task registry is nil"
	cyclicDependencyUnresolvedLabelConstant = "(unresolved)"
)

var (
	// ErrEmptyIdentifier indicates a registration attempt without an identifier.
	ErrEmptyIdentifier = errors.New(emptyIdentifierMessageConstant)
	// ErrPipelineSealed indicates a declaration after the sealing boundary was crossed.
	ErrPipelineSealed = errors.New(pipelineSealedMessageConstant)
	// ErrNilRegistry indicates an operation received no registry.
	ErrNilRegistry = errors.New(nilRegistryMessageConstant)
)

// DuplicateTaskError reports a second registration of an existing identifier.
type DuplicateTaskError struct {
	Identifier string
}

// Error implements the error interface.
func (duplicateError DuplicateTaskError) Error() string {
	return fmt.Sprintf(duplicateTaskErrorTemplateConstant, duplicateError.Identifier)
}

// UnknownTaskError reports a requested identifier that has no registry entry.
type UnknownTaskError struct {
	Identifier string
}

// Error implements the error interface.
func (unknownError UnknownTaskError) Error() string {
	return fmt.Sprintf(unknownTaskErrorTemplateConstant, unknownError.Identifier)
}

// CyclicDependencyError reports identifiers that could not be linearized.
type CyclicDependencyError struct {
	Identifiers []string
}

// Error implements the error interface.
func (cycleError CyclicDependencyError) Error() string {
	label := strings.Join(cycleError.Identifiers, ", ")
	if len(label) == 0 {
		label = cyclicDependencyUnresolvedLabelConstant
	}
	return fmt.Sprintf(cyclicDependencyErrorTemplateConstant, label)
}

// TaskExecutionError reports a task whose completion handle resolved with an error.
type TaskExecutionError struct {
	Identifier string
	Elapsed    time.Duration
	Cause      error
}

// Error implements the error interface.
func (executionError TaskExecutionError) Error() string {
	return fmt.Sprintf(taskExecutionErrorTemplateConstant, executionError.Identifier, executionError.Elapsed.Round(time.Millisecond), executionError.Cause)
}

// Unwrap exposes the underlying task failure.
func (executionError TaskExecutionError) Unwrap() error {
	return executionError.Cause
}
