package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/samples/doubling"
)

// runStress runs n loops that each start a workflow and wait for it, until ctx is canceled. The
// number of completed workflows is logged every second.
func runStress(ctx context.Context, c *client.Client, queue core.Queue, n int, logger *slog.Logger) error {
	var completed, failed atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			for j := 0; ctx.Err() == nil; j++ {
				id, err := c.ScheduleNewWorkflow(ctx, doubling.ChildWorkflowAsyncActivities, i+j, client.WithAppID(string(queue)))
				if err != nil {
					if ctx.Err() == nil {
						logger.Error("Starting workflow", "error", err)
						failed.Add(1)
					}
					continue
				}

				if _, err := client.GetWorkflowResult[int](ctx, c, id, time.Minute); err != nil {
					if ctx.Err() != nil || errors.Is(err, context.Canceled) {
						return
					}

					logger.Error("Waiting for workflow", "instance_id", id, "error", err)
					failed.Add(1)
					continue
				}

				completed.Add(1)
			}
		}(i)
	}

	logger.Info("Running stress test", "loops", n, "queue", queue)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			wg.Wait()

			logger.Info("Stress test done", "completed", completed.Load(), "failed", failed.Load())
			return nil

		case <-ticker.C:
			current := completed.Load()
			logger.Info("Completed workflows", "per_second", current-last, "total", current, "failed", failed.Load())
			last = current
		}
	}
}
