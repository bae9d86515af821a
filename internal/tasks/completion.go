package tasks

import (
	"context"
	"errors"
	"sync"
)

const (
	streamErrorEventMessageConstant = "stream reported an error event"
)

// ErrStreamFailed is reported when a stream emits an error event without a cause.
var ErrStreamFailed = errors.New(streamErrorEventMessageConstant)

// Completion is the one-shot handle a task body uses to report that it finished.
// Only the first call to Done has any effect.
type Completion struct {
	once         sync.Once
	resolved     chan struct{}
	err          error
	continuation func(error)
}

// NewCompletion constructs a handle that invokes continuation exactly once on resolution.
func NewCompletion(continuation func(error)) *Completion {
	return &Completion{
		resolved:     make(chan struct{}),
		continuation: continuation,
	}
}

// Done resolves the handle. Subsequent calls are ignored.
func (completion *Completion) Done(err error) {
	if completion == nil {
		return
	}
	completion.once.Do(func() {
		completion.err = err
		close(completion.resolved)
		if completion.continuation != nil {
			completion.continuation(err)
		}
	})
}

// Resolved returns a channel closed once the handle resolves.
func (completion *Completion) Resolved() <-chan struct{} {
	return completion.resolved
}

// Err returns the captured error after resolution.
func (completion *Completion) Err() error {
	select {
	case <-completion.resolved:
		return completion.err
	default:
		return nil
	}
}

// Wait blocks until the handle resolves or the context ends. A cancelled context
// resolves the handle with the context error.
func (completion *Completion) Wait(executionContext context.Context) error {
	select {
	case <-completion.resolved:
		return completion.err
	case <-executionContext.Done():
		completion.Done(executionContext.Err())
		<-completion.resolved
		return completion.err
	}
}

// Body is a runnable task body. The set of implementations is closed: CallbackBody,
// FutureBody, StreamBody and the FuncBody shim.
type Body interface {
	start(executionContext context.Context, completion *Completion, adapter Adapter)
}

// CallbackBody reports completion by calling Done on the supplied handle.
type CallbackBody func(executionContext context.Context, completion *Completion)

func (body CallbackBody) start(executionContext context.Context, completion *Completion, _ Adapter) {
	body(executionContext, completion)
}

// FutureBody returns a future that settles with the task outcome.
type FutureBody func(executionContext context.Context) *Future

func (body FutureBody) start(executionContext context.Context, completion *Completion, _ Adapter) {
	future := body(executionContext)
	if future == nil {
		completion.Done(nil)
		return
	}
	go func() {
		completion.Done(future.Await(executionContext))
	}()
}

// FuncBody runs synchronously and reports its returned error.
type FuncBody func(executionContext context.Context) error

func (body FuncBody) start(executionContext context.Context, completion *Completion, _ Adapter) {
	completion.Done(body(executionContext))
}

// StreamBody returns a stream whose first terminal event completes the task. Events
// after it are not read.
type StreamBody func(executionContext context.Context) Stream

func (body StreamBody) start(executionContext context.Context, completion *Completion, adapter Adapter) {
	stream := body(executionContext)
	if stream == nil {
		completion.Done(nil)
		return
	}
	events := stream.Events()
	if events == nil {
		completion.Done(nil)
		return
	}
	go func() {
		if releasable, ok := stream.(releaser); ok {
			defer releasable.Release()
		}
		for {
			select {
			case event, open := <-events:
				if !open {
					completion.Done(nil)
					return
				}
				if !event.Kind.Terminal() {
					continue
				}
				completion.Done(adapter.streamEventError(event))
				return
			case <-executionContext.Done():
				completion.Done(executionContext.Err())
				return
			}
		}
	}()
}

// NoopBody completes immediately.
func NoopBody() Body {
	return FuncBody(func(context.Context) error { return nil })
}

// Adapter runs task bodies and normalizes their completion protocol.
type Adapter struct {
	// StreamErrorsFail propagates stream error events as task failures.
	StreamErrorsFail bool
}

// NewAdapter constructs an Adapter that treats stream error events as failures.
func NewAdapter() Adapter {
	return Adapter{StreamErrorsFail: true}
}

// Start launches body and invokes continuation exactly once when it completes.
func (adapter Adapter) Start(executionContext context.Context, body Body, continuation func(error)) *Completion {
	completion := NewCompletion(continuation)
	if body == nil {
		completion.Done(nil)
		return completion
	}
	body.start(executionContext, completion, adapter)
	return completion
}

// Execute runs body and waits for its single outcome.
func (adapter Adapter) Execute(executionContext context.Context, body Body) error {
	if executionContext == nil {
		executionContext = context.Background()
	}
	completion := adapter.Start(executionContext, body, nil)
	return completion.Wait(executionContext)
}

func (adapter Adapter) streamEventError(event StreamEvent) error {
	if event.Kind != StreamEventError || !adapter.StreamErrorsFail {
		return nil
	}
	if event.Err != nil {
		return event.Err
	}
	return ErrStreamFailed
}
