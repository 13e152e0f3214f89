package workflow

import (
	"github.com/cschleiden/go-orchestrator/core"
)

type (
	Instance = core.WorkflowInstance
	Workflow = any
	Activity = any
)
