package workflow

import "github.com/cschleiden/go-orchestrator/internal/sync"

// Context is passed to workflow functions. It only carries values, a workflow cannot be canceled.
type Context = sync.Context
