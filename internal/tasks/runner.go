package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	instrumentationNameConstant = "github.com/tyemirov/emanator/internal/tasks"

	runSpanNameConstant           = "tasks.Run"
	taskSpanNamePrefixConstant    = "task."
	runIdentifierAttributeKey     = "run.id"
	runPlanLengthAttributeKey     = "run.plan_length"
	taskIdentifierAttributeKey    = "task.identifier"
	taskPrerequisitesAttributeKey = "task.prerequisites"
	taskSkippedEventNameConstant  = "task_skipped"

	taskDurationMetricNameConstant        = "emanate_task_duration_seconds"
	taskDurationMetricDescriptionConstant = "Time spent executing each task"
	taskSuccessMetricNameConstant         = "emanate_task_success_total"
	taskSuccessMetricDescriptionConstant  = "Number of successful task executions"
	taskFailureMetricNameConstant         = "emanate_task_failure_total"
	taskFailureMetricDescriptionConstant  = "Number of failed task executions"
	secondsUnitConstant                   = "s"

	runStartedLogMessageConstant        = "task_run_started"
	runCompletedLogMessageConstant      = "task_run_completed"
	taskStartedLogMessageConstant       = "task_started"
	taskSkippedLogMessageConstant       = "task_skipped"
	metricsInitFailedLogMessageConstant = "task metrics unavailable"
	runIdentifierFieldNameConstant      = "run_id"
	planFieldNameConstant               = "plan"
	durationFieldNameConstant           = "duration"
	runIdentifierLengthConstant         = 12
)

// TaskOutcome reports the execution status of one planned task.
type TaskOutcome struct {
	Identifier string
	Duration   time.Duration
	Skipped    bool
	Failed     bool
	Error      error
}

// RunOutcome captures the result of executing a plan.
type RunOutcome struct {
	RunIdentifier string
	Plan          Plan
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	TaskOutcomes  []TaskOutcome
	// Executed counts the tasks whose bodies completed successfully.
	Executed int
}

// Failure returns the failing task outcome, if any.
func (outcome RunOutcome) Failure() (TaskOutcome, bool) {
	for _, taskOutcome := range outcome.TaskOutcomes {
		if taskOutcome.Failed {
			return taskOutcome, true
		}
	}
	return TaskOutcome{}, false
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(runner *Runner) {
		if logger != nil {
			runner.logger = logger
		}
	}
}

// WithProgressSink sets the sink receiving per-task progress.
func WithProgressSink(sink ProgressSink) RunnerOption {
	return func(runner *Runner) {
		runner.sink = sink
	}
}

// WithAdapter sets the completion adapter used to run bodies.
func WithAdapter(adapter Adapter) RunnerOption {
	return func(runner *Runner) {
		runner.adapter = adapter
	}
}

// WithTracerProvider sets the provider for run and task spans.
func WithTracerProvider(provider trace.TracerProvider) RunnerOption {
	return func(runner *Runner) {
		if provider != nil {
			runner.tracer = provider.Tracer(instrumentationNameConstant)
		}
	}
}

// WithMeterProvider sets the provider for task metrics.
func WithMeterProvider(provider metric.MeterProvider) RunnerOption {
	return func(runner *Runner) {
		if provider != nil {
			runner.meter = provider.Meter(instrumentationNameConstant)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) RunnerOption {
	return func(runner *Runner) {
		if clock != nil {
			runner.clock = clock
		}
	}
}

// Runner executes plans one task at a time.
type Runner struct {
	registry *Registry
	adapter  Adapter
	logger   *zap.Logger
	sink     ProgressSink
	tracer   trace.Tracer
	meter    metric.Meter
	clock    func() time.Time

	metricsOnce   sync.Once
	taskDuration  metric.Float64Histogram
	taskSuccesses metric.Int64Counter
	taskFailures  metric.Int64Counter
}

// NewRunner constructs a Runner over registry.
func NewRunner(registry *Registry, options ...RunnerOption) *Runner {
	runner := &Runner{
		registry: registry,
		adapter:  NewAdapter(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationNameConstant),
		meter:    otel.Meter(instrumentationNameConstant),
		clock:    time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(runner)
		}
	}
	return runner
}

func (runner *Runner) initMetrics() {
	runner.metricsOnce.Do(func() {
		var initErrors []error
		var err error

		runner.taskDuration, err = runner.meter.Float64Histogram(taskDurationMetricNameConstant,
			metric.WithDescription(taskDurationMetricDescriptionConstant),
			metric.WithUnit(secondsUnitConstant),
		)
		if err != nil {
			initErrors = append(initErrors, err)
		}

		runner.taskSuccesses, err = runner.meter.Int64Counter(taskSuccessMetricNameConstant,
			metric.WithDescription(taskSuccessMetricDescriptionConstant),
		)
		if err != nil {
			initErrors = append(initErrors, err)
		}

		runner.taskFailures, err = runner.meter.Int64Counter(taskFailureMetricNameConstant,
			metric.WithDescription(taskFailureMetricDescriptionConstant),
		)
		if err != nil {
			initErrors = append(initErrors, err)
		}

		if len(initErrors) > 0 {
			runner.logger.Warn(metricsInitFailedLogMessageConstant, zap.Errors("errors", initErrors))
		}
	})
}

// Run executes plan in order. The first failing task stops the run with a
// TaskExecutionError; identifiers without a registry entry are skipped.
func (runner *Runner) Run(executionContext context.Context, plan Plan) (RunOutcome, error) {
	if runner == nil || runner.registry == nil {
		return RunOutcome{}, ErrNilRegistry
	}
	if executionContext == nil {
		executionContext = context.Background()
	}
	runner.initMetrics()

	runIdentifier := uuid.NewString()[:runIdentifierLengthConstant]
	frozenPlan := Plan(plan.Identifiers())
	total := frozenPlan.Len()

	executionContext, runSpan := runner.tracer.Start(executionContext, runSpanNameConstant,
		trace.WithAttributes(
			attribute.String(runIdentifierAttributeKey, runIdentifier),
			attribute.Int(runPlanLengthAttributeKey, total),
		),
	)
	defer runSpan.End()

	outcome := RunOutcome{
		RunIdentifier: runIdentifier,
		Plan:          frozenPlan,
		StartTime:     runner.clock(),
		TaskOutcomes:  make([]TaskOutcome, 0, total),
	}
	runLogger := runner.logger.With(zap.String(runIdentifierFieldNameConstant, runIdentifier))
	runLogger.Info(runStartedLogMessageConstant, zap.Strings(planFieldNameConstant, frozenPlan.Identifiers()))

	finish := func(runError error) (RunOutcome, error) {
		outcome.EndTime = runner.clock()
		outcome.Duration = outcome.EndTime.Sub(outcome.StartTime)
		if runError != nil {
			runSpan.RecordError(runError)
			runSpan.SetStatus(codes.Error, runError.Error())
		} else {
			runSpan.SetStatus(codes.Ok, "")
		}
		runLogger.Info(runCompletedLogMessageConstant, zap.Duration(durationFieldNameConstant, outcome.Duration), zap.Error(runError))
		return outcome, runError
	}

	for cursor := 0; cursor < total; cursor++ {
		if contextError := executionContext.Err(); contextError != nil {
			return finish(contextError)
		}

		identifier := frozenPlan[cursor]
		descriptor, exists := runner.registry.Lookup(identifier)
		if !exists {
			runSpan.AddEvent(taskSkippedEventNameConstant, trace.WithAttributes(attribute.String(taskIdentifierAttributeKey, identifier)))
			runLogger.Debug(taskSkippedLogMessageConstant, zap.String(taskFieldNameConstant, identifier))
			outcome.TaskOutcomes = append(outcome.TaskOutcomes, TaskOutcome{Identifier: identifier, Skipped: true})
			continue
		}

		taskOutcome, taskError := runner.runTask(executionContext, runLogger, descriptor)
		outcome.TaskOutcomes = append(outcome.TaskOutcomes, taskOutcome)

		remaining := total - cursor - 1
		event := ProgressEvent{
			Identifier: identifier,
			Elapsed:    taskOutcome.Duration,
			Completed:  total - remaining,
			Total:      total,
			Percentage: ProgressPercentage(remaining, total),
		}

		if taskError != nil {
			executionError := TaskExecutionError{Identifier: identifier, Elapsed: taskOutcome.Duration, Cause: taskError}
			if runner.sink != nil {
				runner.sink.TaskFailed(event, taskError)
			}
			return finish(executionError)
		}

		outcome.Executed++
		if runner.sink != nil {
			runner.sink.TaskCompleted(event)
		}
	}

	return finish(nil)
}

func (runner *Runner) runTask(executionContext context.Context, logger *zap.Logger, descriptor *Descriptor) (TaskOutcome, error) {
	identifier := descriptor.Identifier
	taskContext, taskSpan := runner.tracer.Start(executionContext, taskSpanNamePrefixConstant+identifier,
		trace.WithAttributes(
			attribute.String(taskIdentifierAttributeKey, identifier),
			attribute.StringSlice(taskPrerequisitesAttributeKey, descriptor.Prerequisites),
		),
	)
	defer taskSpan.End()

	logger.Debug(taskStartedLogMessageConstant, zap.String(taskFieldNameConstant, identifier))

	startTime := runner.clock()
	taskError := runner.adapter.Execute(taskContext, descriptor.Body)
	elapsed := runner.clock().Sub(startTime)

	metricAttributes := metric.WithAttributes(attribute.String(taskIdentifierAttributeKey, identifier))
	if runner.taskDuration != nil {
		runner.taskDuration.Record(taskContext, elapsed.Seconds(), metricAttributes)
	}

	outcome := TaskOutcome{Identifier: identifier, Duration: elapsed}
	if taskError != nil {
		outcome.Failed = true
		outcome.Error = taskError
		if runner.taskFailures != nil {
			runner.taskFailures.Add(taskContext, 1, metricAttributes)
		}
		taskSpan.RecordError(taskError)
		taskSpan.SetStatus(codes.Error, taskError.Error())
		return outcome, taskError
	}

	if runner.taskSuccesses != nil {
		runner.taskSuccesses.Add(taskContext, 1, metricAttributes)
	}
	taskSpan.SetStatus(codes.Ok, "")
	return outcome, nil
}
