package tasks

import "sync"

const eventStreamBufferSizeConstant = 8

// StreamEventKind names an event emitted by a stream-shaped task body.
type StreamEventKind string

// Stream event kinds. Finish, error and end are terminal.
const (
	StreamEventData   StreamEventKind = StreamEventKind("data")
	StreamEventFinish StreamEventKind = StreamEventKind("finish")
	StreamEventError  StreamEventKind = StreamEventKind("error")
	StreamEventEnd    StreamEventKind = StreamEventKind("end")
)

// Terminal reports whether the event kind completes a task.
func (kind StreamEventKind) Terminal() bool {
	switch kind {
	case StreamEventFinish, StreamEventError, StreamEventEnd:
		return true
	default:
		return false
	}
}

// StreamEvent is a single emission from a Stream.
type StreamEvent struct {
	Kind StreamEventKind
	Err  error
}

// Stream exposes terminal and informational events of a long-running body.
type Stream interface {
	Events() <-chan StreamEvent
}

// EventStream is a Stream fed by explicit Emit calls. Emit after Close or Release is a no-op.
type EventStream struct {
	mutex       sync.Mutex
	events      chan StreamEvent
	released    chan struct{}
	releaseOnce sync.Once
	closed      bool
}

// NewEventStream constructs an open EventStream.
func NewEventStream() *EventStream {
	return &EventStream{
		events:   make(chan StreamEvent, eventStreamBufferSizeConstant),
		released: make(chan struct{}),
	}
}

// Events implements Stream.
func (stream *EventStream) Events() <-chan StreamEvent {
	return stream.events
}

// Emit publishes an event. It blocks while the buffer is full until the consumer
// reads or releases the stream.
func (stream *EventStream) Emit(kind StreamEventKind, err error) {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	if stream.closed {
		return
	}
	select {
	case stream.events <- StreamEvent{Kind: kind, Err: err}:
	case <-stream.released:
	}
}

// Release tells the producer that nobody reads the stream anymore.
func (stream *EventStream) Release() {
	stream.releaseOnce.Do(func() {
		close(stream.released)
	})
}

// Close ends the stream.
func (stream *EventStream) Close() {
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	if stream.closed {
		return
	}
	stream.closed = true
	close(stream.events)
}

// releaser is implemented by streams whose producers wait on the consumer.
type releaser interface {
	Release()
}
