package runtime

import (
	"context"
	"sync"
	"time"

	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
)

// Injector is the producer side of the injected-event feed. It is handed to
// the handler factory and may be shared with any number of goroutines. Values
// from one producer are delivered in the order that producer sent them.
//
// The runtime seals the injector once stdin reaches end of input: values
// already queued are still delivered, later sends fail with
// ErrInjectorClosed.
type Injector[T any] struct {
	ch chan T

	mu     sync.RWMutex
	closed bool

	once sync.Once
	done chan struct{}
}

func newInjector[T any](buffer int) *Injector[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &Injector[T]{
		ch:   make(chan T, buffer),
		done: make(chan struct{}),
	}
}

// Send queues v, blocking while the queue is full. Calling Send from inside
// a handler step with a full queue would wait on the step itself; use
// TrySend there.
func (i *Injector[T]) Send(ctx context.Context, v T) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return errspkg.ErrInjectorClosed
	}
	select {
	case <-i.done:
		return errspkg.ErrInjectorClosed
	default:
	}

	select {
	case i.ch <- v:
		return nil
	case <-i.done:
		return errspkg.ErrInjectorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend queues v without blocking and reports ErrInjectorFull when the
// queue has no room.
func (i *Injector[T]) TrySend(v T) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return errspkg.ErrInjectorClosed
	}
	select {
	case i.ch <- v:
		return nil
	default:
		return errspkg.ErrInjectorFull
	}
}

// Close ends the injected feed. It is idempotent and unblocks pending Sends.
func (i *Injector[T]) Close() {
	i.once.Do(func() {
		close(i.done)
		i.mu.Lock()
		i.closed = true
		close(i.ch)
		i.mu.Unlock()
	})
}

// Done is closed once the injector stops accepting values.
func (i *Injector[T]) Done() <-chan struct{} {
	return i.done
}

// Len reports how many values are waiting for the dispatch loop.
func (i *Injector[T]) Len() int {
	return len(i.ch)
}

func (i *Injector[T]) events() <-chan T {
	return i.ch
}

// Tick starts a producer that sends next() every interval until ctx ends or
// the injector is closed. It is the usual way to drive periodic work such as
// gossip rounds or retries.
func Tick[T any](ctx context.Context, inj *Injector[T], every time.Duration, next func() T) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-inj.Done():
				return
			case <-ticker.C:
				if err := inj.Send(ctx, next()); err != nil {
					return
				}
			}
		}
	}()
}
