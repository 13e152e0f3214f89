package sync

type Future[T any] interface {
	// Get returns the value if set, suspends the coroutine otherwise
	Get(ctx Context) (T, error)
}

type SettableFuture[T any] interface {
	Future[T]

	// Set stores the getter that produces the value of the future
	Set(getter func() (T, error)) error

	Ready() bool
}

func NewFuture[T any]() SettableFuture[T] {
	return &futureImpl[T]{}
}

// NewFailedFuture returns a future that resolves to err.
func NewFailedFuture[T any](err error) Future[T] {
	f := NewFuture[T]()
	f.Set(func() (T, error) {
		var z T
		return z, err
	})

	return f
}

type futureImpl[T any] struct {
	getter func() (T, error)
}

func (f *futureImpl[T]) Set(getter func() (T, error)) error {
	if f.getter != nil {
		return ErrFutureAlreadySet
	}

	f.getter = getter

	return nil
}

func (f *futureImpl[T]) Get(ctx Context) (T, error) {
	if f.getter == nil {
		Suspend(ctx)
	}

	return f.getter()
}

func (f *futureImpl[T]) Ready() bool {
	return f.getter != nil
}
