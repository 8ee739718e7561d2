// Package loader runs one-shot data fetches for request-scoped view models.
// A Result starts in StateLoading and settles exactly once, either with the
// data or with the error that prevented it.
package loader

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Result holds the outcome of a single fetch.
type Result[T any] struct {
	mu    sync.Mutex
	once  sync.Once
	done  chan struct{}
	state State
	data  T
	err   error
}

// View is the serialisable form of a Result at one instant.
type View[T any] struct {
	State State  `json:"state"`
	Data  *T     `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Load starts fn in its own goroutine and returns immediately. fn receives
// ctx; a cancelled ctx settles the result with the context error if fn
// has not returned yet.
func Load[T any](ctx context.Context, fn func(context.Context) (T, error)) *Result[T] {
	r := &Result[T]{done: make(chan struct{}), state: StateLoading}
	go func() {
		data, err := fn(ctx)
		r.settle(data, err)
	}()
	go func() {
		select {
		case <-ctx.Done():
			var zero T
			r.settle(zero, ctx.Err())
		case <-r.done:
		}
	}()
	return r
}

// Resolved returns an already settled result.
func Resolved[T any](data T, err error) *Result[T] {
	r := &Result[T]{done: make(chan struct{}), state: StateLoading}
	r.settle(data, err)
	return r
}

func (r *Result[T]) settle(data T, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		if err != nil {
			r.state = StateError
			r.err = err
		} else {
			r.state = StateSuccess
			r.data = data
		}
		r.mu.Unlock()
		close(r.done)
	})
}

func (r *Result[T]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed once the result has settled.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the result settles or ctx is done.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data, r.err
}

func (r *Result[T]) View() View[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := View[T]{State: r.state}
	switch r.state {
	case StateSuccess:
		data := r.data
		v.Data = &data
	case StateError:
		v.Error = r.err.Error()
	}
	return v
}

// Task is one named fetch run by LoadAll.
type Task struct {
	Name string
	Run  func(context.Context) error
}

// LoadAll runs tasks concurrently and returns the first failure, wrapped
// with the task name. The context passed to the tasks is cancelled as soon
// as one of them fails.
func LoadAll(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			if err := task.Run(gctx); err != nil {
				return fmt.Errorf("load %s: %w", task.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Into adapts a typed fetch into a Task that stores its value in dst.
func Into[T any](name string, dst *T, fn func(context.Context) (T, error)) Task {
	return Task{
		Name: name,
		Run: func(ctx context.Context) error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			*dst = v
			return nil
		},
	}
}
