package worker

import (
	"context"
	"sync/atomic"
)

// workQueue hands polled tasks to the dispatcher. With a limit, pollers reserve a slot before polling
// so no more tasks are taken from the backend than can be executed.
type workQueue[Task any] struct {
	tasks chan *Task
	slots chan struct{}

	inFlight atomic.Int64

	// report is called with the number of reserved slots whenever it changes
	report func(inFlight int64)
}

func newWorkQueue[Task any](maxParallelTasks int, report func(inFlight int64)) *workQueue[Task] {
	var slots chan struct{}
	if maxParallelTasks > 0 {
		slots = make(chan struct{}, maxParallelTasks)
	}

	if report == nil {
		report = func(int64) {}
	}

	return &workQueue[Task]{
		tasks:  make(chan *Task),
		slots:  slots,
		report: report,
	}
}

func (w *workQueue[Task]) reserve(ctx context.Context) error {
	if w.slots != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w.slots <- struct{}{}:
		}
	}

	w.report(w.inFlight.Add(1))

	return nil
}

func (w *workQueue[Task]) add(ctx context.Context, task *Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.tasks <- task:
		return nil
	}
}

func (w *workQueue[Task]) release() {
	w.report(w.inFlight.Add(-1))

	if w.slots != nil {
		<-w.slots
	}
}
