package future

import (
	"context"
	"sync"
)

// Future is a value that settles exactly once, either resolved with a value or
// rejected with an error. Any number of subscribers may observe the settlement.
type Future[T any] struct {
	mu          sync.Mutex
	done        chan struct{}
	settled     bool
	value       T
	err         error
	subscribers []func(T, error)
}

func New[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

// Resolve settles the future with value. Returns false if it was already settled.
func (f *Future[T]) Resolve(value T) bool {
	return f.settle(value, nil)
}

// Reject settles the future with err. Returns false if it was already settled.
func (f *Future[T]) Reject(err error) bool {
	var empty T
	return f.settle(empty, err)
}

func (f *Future[T]) settle(value T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = value
	f.err = err
	subscribers := f.subscribers
	f.subscribers = nil
	close(f.done)
	f.mu.Unlock()

	// Run outside the lock so subscribers can inspect or subscribe to f
	for _, subscriber := range subscribers {
		subscriber(value, err)
	}

	return true
}

// Subscribe calls fn once the future settles. If it has already settled fn is
// called before Subscribe returns. Subscribers run in the order they were added.
func (f *Future[T]) Subscribe(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.subscribers = append(f.subscribers, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()

	fn(value, err)
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.settled
}

// Result returns the settled value and error. Only meaningful once Done is closed.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.value, f.err
}

// Wait blocks until the future settles or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		var empty T
		return empty, ctx.Err()
	}
}

// All calls cb once: with every value, in input order, when all futures
// resolve, or with the first rejection as soon as one occurs.
func All[T any](futures []*Future[T], cb func([]T, error)) {
	if len(futures) == 0 {
		cb([]T{}, nil)
		return
	}

	var (
		mu        sync.Mutex
		finished  bool
		remaining = len(futures)
		values    = make([]T, len(futures))
	)

	for i, f := range futures {
		f.Subscribe(func(value T, err error) {
			mu.Lock()
			if finished {
				mu.Unlock()
				return
			}

			if err != nil {
				finished = true
				mu.Unlock()
				cb(nil, err)
				return
			}

			values[i] = value
			remaining--
			if remaining > 0 {
				mu.Unlock()
				return
			}
			finished = true
			mu.Unlock()

			cb(values, nil)
		})
	}
}
