// Package tasks is the dependency engine behind emanate. A Registry holds task
// descriptors, CompileList and PipelineBuilder turn declarative pipeline
// descriptions into dependency edges, Linearize orders a requested closure
// topologically, and Runner executes the resulting Plan one task at a time
// through the completion Adapter, which accepts callback, future and stream
// shaped bodies and guarantees a single resolution per task.
package tasks
