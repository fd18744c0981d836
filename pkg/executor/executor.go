// Package executor is the task-execution capability consumed by workers.
// The real plan-runner tool and the version-control commit/change-request
// flow live outside this module; Executor is the seam between a worker and
// whatever actually runs a test plan inside a workspace.
package executor

import (
	"context"

	"github.com/proactiva/planrunner/pkg/types"
)

// Outcome is what an Executor reports back for one Request.
type Outcome struct {
	Status      types.ResultStatus
	TasksPassed int
	TasksFailed int
	Error       string
}

// Executor runs one Request inside the given workspace path and reports
// the outcome. Implementations must honor ctx's deadline (the worker sets
// one from Request.Config.TaskTimeout) and return promptly on
// cancellation rather than leaving the workspace in an indeterminate
// state.
type Executor interface {
	Execute(ctx context.Context, workspacePath string, req types.Request) (Outcome, error)
}
