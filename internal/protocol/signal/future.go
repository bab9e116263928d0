package signal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Outcome tells how a Wait ended.
type Outcome int

const (
	Signaled Outcome = iota
	Cancelled
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Signaled:
		return "signaled"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// ErrTimeout is returned by Await when the timer fired first.
var ErrTimeout = errors.New("signal: wait timed out")

// Future is a value delivered once.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	v    T
}

// NewFuture returns an unset Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Set delivers v. Only the first call has an effect; it reports whether this
// call was the one.
func (f *Future[T]) Set(v T) bool {
	set := false
	f.once.Do(func() {
		f.v = v
		close(f.done)
		set = true
	})
	return set
}

// Done is closed once a value was set.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Peek returns the value if it was set.
func (f *Future[T]) Peek() (T, bool) {
	select {
	case <-f.done:
		return f.v, true
	default:
		var zero T
		return zero, false
	}
}

// Wait blocks until the value is set, ctx is done, or timeout elapses. A
// non-positive timeout waits without a timer. A value that is already set
// wins over a done ctx.
func (f *Future[T]) Wait(ctx context.Context, timeout time.Duration) (T, Outcome) {
	if v, ok := f.Peek(); ok {
		return v, Signaled
	}

	var timerCh <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerCh = t.C
	}

	var zero T
	select {
	case <-f.done:
		return f.v, Signaled
	case <-ctx.Done():
		return zero, Cancelled
	case <-timerCh:
		return zero, TimedOut
	}
}

// Await is Wait with the outcome folded into an error: nil, ctx.Err() or
// ErrTimeout.
func (f *Future[T]) Await(ctx context.Context, timeout time.Duration) (T, error) {
	v, out := f.Wait(ctx, timeout)
	switch out {
	case Cancelled:
		return v, ctx.Err()
	case TimedOut:
		return v, ErrTimeout
	default:
		return v, nil
	}
}
