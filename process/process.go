// Package process implements the cooperative cancellation idiom used
// across the engines: a long-running operation returns a Handle whose
// result resolves to a final value or error, and whose Stop is a
// non-blocking, idempotent flag the engine checks at its next suspension
// point. No background thread besides the one running the operation
// itself is required.
package process

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is the error engines complete a Handle with when Stop was
// observed before a usable result existed.
var ErrStopped = errors.New("process: stopped by caller")

// Handle is the process handle returned by the long-running operations:
// find_port, auto-reconnect and calibrate in the façade.
type Handle[T any] struct {
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	result T
	err    error
}

// New creates a handle along with the finish function the engine calls
// exactly once when it completes (successfully, with an error, or after
// observing Stopped()).
func New[T any]() (*Handle[T], func(T, error)) {
	h := &Handle[T]{
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	var finishOnce sync.Once
	finish := func(result T, err error) {
		finishOnce.Do(func() {
			h.mu.Lock()
			h.result = result
			h.err = err
			h.mu.Unlock()
			close(h.done)
		})
	}
	return h, finish
}

// Stop requests cancellation. It is non-blocking and safe to call more
// than once or concurrently with Wait.
func (h *Handle[T]) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Stopped returns a channel closed once Stop has been called. Engines
// select on this at their suspension points.
func (h *Handle[T]) Stopped() <-chan struct{} {
	return h.stop
}

// Done returns a channel closed once the operation has completed.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the operation completes or ctx is cancelled first.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
