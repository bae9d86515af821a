package taskrunner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/emanator/internal/tasks"
)

type fakeExecutor struct {
	outcome tasks.RunOutcome
	err     error
}

func (executor fakeExecutor) Run(_ context.Context, _ tasks.Plan) (tasks.RunOutcome, error) {
	return executor.outcome, executor.err
}

func TestRenderSummaryLineSkipsEmptyPlan(t *testing.T) {
	summary := RenderSummaryLine(tasks.RunOutcome{})
	require.Equal(t, "", summary)
}

func TestRenderSummaryLineFormatsCounts(t *testing.T) {
	outcome := tasks.RunOutcome{
		RunIdentifier: "abc123",
		Plan:          tasks.Plan{"init", "placeholder", "archive"},
		Duration:      1500 * time.Millisecond,
		Executed:      1,
		TaskOutcomes: []tasks.TaskOutcome{
			{Identifier: "init"},
			{Identifier: "placeholder", Skipped: true},
			{Identifier: "archive", Failed: true, Error: errors.New("zip failed")},
		},
	}

	summary := RenderSummaryLine(outcome)
	require.Contains(t, summary, "Summary: total.tasks=3")
	require.Contains(t, summary, "run=abc123")
	require.Contains(t, summary, "executed=1")
	require.Contains(t, summary, "skipped=1")
	require.Contains(t, summary, "failed=1")
	require.Contains(t, summary, "failed_task=archive")
	require.Contains(t, summary, "duration_human=1.5s")
	require.Contains(t, summary, "duration_ms=1500")
}

func TestSummaryExecutorPrintsSummary(t *testing.T) {
	buffer := &bytes.Buffer{}
	executor := summaryExecutor{
		delegate: fakeExecutor{
			outcome: tasks.RunOutcome{Plan: tasks.Plan{"init", "done"}, Executed: 2, Duration: 100 * time.Millisecond},
		},
		dependencies: Dependencies{Errors: buffer},
	}

	_, err := executor.Run(context.Background(), tasks.Plan{"init", "done"})
	require.NoError(t, err)
	require.Contains(t, buffer.String(), "Summary: total.tasks=2")
}

func TestSummaryExecutorHonorsDisableSummary(t *testing.T) {
	buffer := &bytes.Buffer{}
	executor := summaryExecutor{
		delegate:     fakeExecutor{outcome: tasks.RunOutcome{Plan: tasks.Plan{"init"}}},
		dependencies: Dependencies{Errors: buffer, DisableSummary: true},
	}

	_, err := executor.Run(context.Background(), tasks.Plan{"init"})
	require.NoError(t, err)
	require.Empty(t, buffer.String())
}

func TestResolveUsesFactoryExecutor(t *testing.T) {
	expectedError := errors.New("factory executor")
	executor := Resolve(func(Dependencies, *tasks.Registry) Executor {
		return fakeExecutor{err: expectedError}
	}, Dependencies{DisableSummary: true}, tasks.NewRegistry())

	_, err := executor.Run(context.Background(), nil)
	require.ErrorIs(t, err, expectedError)
}

func TestResolveDefaultsToTaskRunner(t *testing.T) {
	registry := tasks.NewRegistry()
	executed := []string{}
	for _, identifier := range []string{"first", "second"} {
		name := identifier
		_, registerError := registry.Register(name, []string{}, tasks.FuncBody(func(context.Context) error {
			executed = append(executed, name)
			return nil
		}))
		require.NoError(t, registerError)
	}

	buffer := &bytes.Buffer{}
	executor := Resolve(nil, Dependencies{Errors: buffer}, registry)
	outcome, err := executor.Run(context.Background(), tasks.Plan{"first", "second"})

	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, executed)
	require.Equal(t, 2, outcome.Executed)
	require.Contains(t, buffer.String(), "executed=2")
}

func TestResolveRespectsStreamErrorPolicy(t *testing.T) {
	registry := tasks.NewRegistry()
	_, registerError := registry.Register("stream", []string{}, tasks.StreamBody(func(context.Context) tasks.Stream {
		stream := tasks.NewEventStream()
		go func() {
			defer stream.Close()
			stream.Emit(tasks.StreamEventError, errors.New("warning"))
			stream.Emit(tasks.StreamEventEnd, nil)
		}()
		return stream
	}))
	require.NoError(t, registerError)

	lenient := Resolve(nil, Dependencies{DisableSummary: true, StreamErrorsFail: false}, registry)
	_, lenientError := lenient.Run(context.Background(), tasks.Plan{"stream"})
	require.NoError(t, lenientError)

	strict := Resolve(nil, Dependencies{DisableSummary: true, StreamErrorsFail: true}, registry)
	_, strictError := strict.Run(context.Background(), tasks.Plan{"stream"})
	require.Error(t, strictError)
}
