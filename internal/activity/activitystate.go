package activity

import (
	"context"
	"log/slog"

	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/log"
)

type ActivityState struct {
	ActivityID string
	Name       string
	Attempt    int
	Instance   *core.WorkflowInstance
	Logger     *slog.Logger
}

func NewActivityState(activityID, name string, attempt int, instance *core.WorkflowInstance, logger *slog.Logger) *ActivityState {
	return &ActivityState{
		ActivityID: activityID,
		Name:       name,
		Attempt:    attempt,
		Instance:   instance,
		Logger: logger.With(
			log.ActivityNameKey, name,
			log.EventIDKey, activityID,
			log.InstanceIDKey, instance.InstanceID,
			log.ExecutionIDKey, instance.ExecutionID,
		),
	}
}

type key int

var activityCtxKey key

func WithActivityState(ctx context.Context, as *ActivityState) context.Context {
	return context.WithValue(ctx, activityCtxKey, as)
}

func GetActivityState(ctx context.Context) *ActivityState {
	as, _ := ctx.Value(activityCtxKey).(*ActivityState)
	return as
}
