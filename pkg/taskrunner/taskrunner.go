package taskrunner

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tyemirov/emanator/internal/tasks"
)

// Executor runs linearized task plans.
type Executor interface {
	Run(ctx context.Context, plan tasks.Plan) (tasks.RunOutcome, error)
}

// Factory constructs an Executor for a registry given shared dependencies.
type Factory func(Dependencies, *tasks.Registry) Executor

// Resolve returns either the provided factory result or a default tasks.Runner,
// wrapped so a summary line is printed after every run.
func Resolve(factory Factory, dependencies Dependencies, registry *tasks.Registry) Executor {
	var base Executor
	if factory != nil {
		base = factory(dependencies, registry)
	}
	if base == nil {
		base = tasks.NewRunner(registry, runnerOptions(dependencies)...)
	}
	return summaryExecutor{
		delegate:     base,
		dependencies: dependencies,
	}
}

func runnerOptions(dependencies Dependencies) []tasks.RunnerOption {
	adapter := tasks.NewAdapter()
	adapter.StreamErrorsFail = dependencies.StreamErrorsFail
	options := []tasks.RunnerOption{
		tasks.WithLogger(dependencies.Logger),
		tasks.WithAdapter(adapter),
		tasks.WithTracerProvider(dependencies.TracerProvider),
		tasks.WithMeterProvider(dependencies.MeterProvider),
	}
	if dependencies.ProgressSink != nil {
		options = append(options, tasks.WithProgressSink(dependencies.ProgressSink))
	}
	return options
}

type summaryExecutor struct {
	delegate     Executor
	dependencies Dependencies
}

func (executor summaryExecutor) Run(ctx context.Context, plan tasks.Plan) (tasks.RunOutcome, error) {
	outcome, err := executor.delegate.Run(ctx, plan)
	executor.printSummary(outcome)
	return outcome, err
}

func (executor summaryExecutor) printSummary(outcome tasks.RunOutcome) {
	if executor.dependencies.DisableSummary {
		return
	}
	writer := executor.summaryWriter()
	if writer == nil {
		return
	}

	summary := RenderSummaryLine(outcome)
	if len(strings.TrimSpace(summary)) == 0 {
		return
	}
	fmt.Fprintln(writer, summary)
}

func (executor summaryExecutor) summaryWriter() io.Writer {
	if executor.dependencies.Errors != nil {
		return executor.dependencies.Errors
	}
	if executor.dependencies.Output != nil {
		return executor.dependencies.Output
	}
	return nil
}
