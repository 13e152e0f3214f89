package sync

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
)

const DeadlockDetection = 40 * time.Second

var ErrDeadlockDetected = errors.New("coroutine did not finish or suspend in time, possible deadlock")

var ErrFutureAlreadySet = errors.New("future already set")

// Coroutine runs a function in its own goroutine until it returns, suspends, or aborts. A suspended
// coroutine is not resumed. The function is started again from the top instead.
type Coroutine interface {
	// Execute runs the coroutine and waits until it is finished, suspended, or aborted.
	Execute() error

	Finished() bool
	Suspended() bool

	// Aborted returns the error the coroutine was aborted with, if any
	Aborted() error

	// Error returns the error returned by the function, or a panic error
	Error() error
}

type key int

var coroutinesCtxKey key

type coState struct {
	fn  func(Context) error
	ctx Context

	done chan struct{}

	started   atomic.Bool
	finished  atomic.Bool
	suspended atomic.Bool

	abortErr error
	err      error

	deadlockDetection time.Duration
}

func NewCoroutine(ctx Context, fn func(ctx Context) error) Coroutine {
	s := &coState{
		fn:                fn,
		done:              make(chan struct{}),
		deadlockDetection: DeadlockDetection,
	}

	s.ctx = withCoState(ctx, s)

	return s
}

func (s *coState) run() {
	defer close(s.done)

	defer func() {
		// Goexit from Suspend and Abort is not visible to recover
		if r := recover(); r != nil {
			s.err = workflowerrors.NewPanicError(fmt.Sprintf("panic: %v", r))
			s.finished.Store(true)
		}
	}()

	s.err = s.fn(s.ctx)
	s.finished.Store(true)
}

func (s *coState) Execute() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	t := time.NewTimer(s.deadlockDetection)
	defer t.Stop()

	go s.run()

	select {
	case <-s.done:
		return nil
	case <-t.C:
		return ErrDeadlockDetected
	}
}

func (s *coState) Finished() bool {
	return s.finished.Load()
}

func (s *coState) Suspended() bool {
	return s.suspended.Load()
}

func (s *coState) Aborted() error {
	select {
	case <-s.done:
		return s.abortErr
	default:
		return nil
	}
}

func (s *coState) Error() error {
	if !s.Finished() {
		return nil
	}

	return s.err
}

func (s *coState) suspend() {
	s.suspended.Store(true)
	runtime.Goexit()
}

func (s *coState) abort(err error) {
	s.abortErr = err
	runtime.Goexit()
}

// Suspend ends the execution of the coroutine running with ctx. It does not return.
func Suspend(ctx Context) {
	getCoState(ctx).suspend()
}

// Abort ends the execution of the coroutine running with ctx with a fatal error. Workflow code cannot
// recover from it. It does not return.
func Abort(ctx Context, err error) {
	getCoState(ctx).abort(err)
}

func withCoState(ctx Context, s *coState) Context {
	return WithValue(ctx, coroutinesCtxKey, s)
}

func getCoState(ctx Context) *coState {
	s, ok := ctx.Value(coroutinesCtxKey).(*coState)
	if !ok {
		panic("could not find coroutine state")
	}

	return s
}
