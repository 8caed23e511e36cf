package viewer

import "context"

// Future is a write-once result. Readers either poll with Ready or block
// with Value and Await.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that already holds value.
func Resolved[T any](value T) *Future[T] {
	f := newFuture[T]()
	f.resolve(value, nil)
	return f
}

// resolve must be called exactly once.
func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the future is resolved.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Value blocks until the future resolves.
func (f *Future[T]) Value() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await blocks until the future resolves or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
