package tasks

import (
	"context"
	"sync"
)

// Future is a single-settlement asynchronous result.
type Future struct {
	once    sync.Once
	settled chan struct{}
	err     error
}

// NewFuture constructs an unsettled future.
func NewFuture() *Future {
	return &Future{settled: make(chan struct{})}
}

// ResolvedFuture returns a future already settled successfully.
func ResolvedFuture() *Future {
	future := NewFuture()
	future.Resolve()
	return future
}

// RejectedFuture returns a future already settled with err.
func RejectedFuture(err error) *Future {
	future := NewFuture()
	future.Reject(err)
	return future
}

// Go runs work on a new goroutine and settles the returned future with its result.
func Go(work func() error) *Future {
	future := NewFuture()
	go func() {
		future.settle(work())
	}()
	return future
}

// Resolve settles the future successfully.
func (future *Future) Resolve() {
	future.settle(nil)
}

// Reject settles the future with err.
func (future *Future) Reject(err error) {
	future.settle(err)
}

func (future *Future) settle(err error) {
	future.once.Do(func() {
		future.err = err
		close(future.settled)
	})
}

// Await blocks until the future settles or the context ends.
func (future *Future) Await(executionContext context.Context) error {
	select {
	case <-future.settled:
		return future.err
	case <-executionContext.Done():
		return executionContext.Err()
	}
}
