package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proactiva/planrunner/pkg/types"
)

// Fake is a deterministic test double for Executor, standing in for the
// original simulation path ("sleep briefly, then report 5 passed, 0
// failed"). It can be tuned to fail on specific call numbers or always,
// and to sleep for a configurable duration to exercise timeouts.
type Fake struct {
	mu sync.Mutex

	// Sleep is how long Execute blocks before returning, simulating
	// real work. Zero means return immediately.
	Sleep time.Duration

	// FailAlways, if true, makes every call raise an error.
	FailAlways bool

	// FailOnCall fails (raises, not a FAILED Outcome) the Nth call to
	// Execute for the named request (1-indexed); a request absent from
	// the map never fails this way.
	FailOnCall map[string]int

	// PassedPerRun / FailedPerRun are reported on a successful run.
	PassedPerRun int
	FailedPerRun int

	calls map[string]int
}

// NewFake returns a Fake configured like the original simulation: a short
// sleep, 5 sub-tasks passed, 0 failed.
func NewFake() *Fake {
	return &Fake{
		Sleep:        100 * time.Millisecond,
		PassedPerRun: 5,
		calls:        make(map[string]int),
	}
}

func (f *Fake) Execute(ctx context.Context, workspacePath string, req types.Request) (Outcome, error) {
	f.mu.Lock()
	f.calls[req.ID]++
	n := f.calls[req.ID]
	f.mu.Unlock()

	if f.Sleep > 0 {
		select {
		case <-time.After(f.Sleep):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}

	if f.FailAlways || (f.FailOnCall != nil && n == f.FailOnCall[req.ID]) {
		return Outcome{}, fmt.Errorf("fake executor: call %d for request %s configured to fail", n, req.ID)
	}

	return Outcome{
		Status:      types.ResultComplete,
		TasksPassed: f.PassedPerRun,
		TasksFailed: f.FailedPerRun,
	}, nil
}

// CallCount returns how many times Execute has been invoked for the
// named request.
func (f *Fake) CallCount(requestID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[requestID]
}

var _ Executor = (*Fake)(nil)
