package postgres

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

const (
	workflowTasksChannel = "workflow_tasks"
	activityTasksChannel = "activity_tasks"
)

// notificationListener receives LISTEN/NOTIFY notifications for new workflow and activity tasks and
// turns them into wakeups for waiting pollers.
type notificationListener struct {
	logger   *slog.Logger
	listener *pq.Listener

	workflowNotify chan struct{}
	activityNotify chan struct{}

	done     chan struct{}
	wg       sync.WaitGroup
	closeMtx sync.Mutex
	closed   bool
}

func newNotificationListener(dsn string, logger *slog.Logger) (*notificationListener, error) {
	nl := &notificationListener{
		logger:         logger,
		workflowNotify: make(chan struct{}, 1),
		activityNotify: make(chan struct{}, 1),
		done:           make(chan struct{}),
	}

	nl.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error("Notification listener event", "event", ev, "error", err)
		}
	})

	for _, channel := range []string{workflowTasksChannel, activityTasksChannel} {
		if err := nl.listener.Listen(channel); err != nil {
			nl.listener.Close()
			return nil, fmt.Errorf("listening to %s channel: %w", channel, err)
		}
	}

	nl.wg.Add(1)
	go nl.run()

	return nl, nil
}

func (nl *notificationListener) run() {
	defer nl.wg.Done()

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-nl.done:
			return

		case n, ok := <-nl.listener.Notify:
			if !ok {
				return
			}

			// A nil notification is sent after the connection was re-established, events might have been
			// missed so wake up everyone.
			if n == nil || n.Channel == workflowTasksChannel {
				signal(nl.workflowNotify)
			}

			if n == nil || n.Channel == activityTasksChannel {
				signal(nl.activityNotify)
			}

		case <-ping.C:
			if err := nl.listener.Ping(); err != nil {
				nl.logger.Error("Notification listener ping failed", "error", err)
			}
		}
	}
}

func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
		// Already signalled
	}
}

func (nl *notificationListener) Close() error {
	nl.closeMtx.Lock()
	defer nl.closeMtx.Unlock()

	if nl.closed {
		return nil
	}
	nl.closed = true

	close(nl.done)
	nl.wg.Wait()

	if err := nl.listener.Close(); err != nil {
		return fmt.Errorf("closing notification listener: %w", err)
	}

	return nil
}
