package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/proactiva/planrunner/pkg/types"
)

var errNoCommand = errors.New("shell executor: no command configured")

// Shell runs a configured command line inside the workspace directory and
// translates its exit status into an Outcome, the same shape as the
// original container executor: a zero exit is a pass, any other exit is
// folded into TasksFailed rather than raised as an error, so a misbehaving
// plan does not take the worker down with it. A cancelled or expired ctx is
// returned as ctx.Err() instead of an Outcome.
type Shell struct {
	// Command is the program to run, e.g. []string{"planctl", "run"}.
	// PlanRef and SubRange are appended as the final two arguments.
	Command []string

	// Env, if set, is appended to the command's environment.
	Env []string
}

func (s *Shell) Execute(ctx context.Context, workspacePath string, req types.Request) (Outcome, error) {
	if len(s.Command) == 0 {
		return Outcome{}, errNoCommand
	}

	args := append(append([]string{}, s.Command[1:]...), req.PlanRef, req.SubRange)
	cmd := exec.CommandContext(ctx, s.Command[0], args...)
	cmd.Dir = workspacePath
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	if err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = fmt.Sprintf("command exited with error: %v", err)
		}
		return Outcome{
			Status:      types.ResultFailed,
			TasksFailed: 1,
			Error:       errMsg,
		}, nil
	}

	return Outcome{
		Status:      types.ResultComplete,
		TasksPassed: 1,
	}, nil
}

var _ Executor = (*Shell)(nil)
