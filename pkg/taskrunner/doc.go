// Package taskrunner hosts the shared abstractions for executing emanate task plans.
// It exposes the `Executor` interface plus helpers (`Factory`, `Resolve`) so CLI
// packages can assemble Dependencies once and obtain a runner, while unit tests can
// swap in fakes. BuildDependencies resolves the logger, shell executor, filesystem
// and writers every packaging run shares.
package taskrunner
