package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proactiva/planrunner/pkg/executor"
	"github.com/proactiva/planrunner/pkg/pool"
	"github.com/proactiva/planrunner/pkg/queue"
	"github.com/proactiva/planrunner/pkg/types"
	"github.com/proactiva/planrunner/pkg/vcs"
)

func newTestRig(t *testing.T, poolSize int, ex executor.Executor) (*Worker, *queue.Queue, *pool.Pool) {
	t.Helper()
	p := pool.New(vcs.NewFake())
	require.NoError(t, p.Initialize(context.Background(), pool.Config{Size: poolSize, BaseDir: "/tmp/x", MainRepoPath: "/tmp/y"}))
	q := queue.New(10)
	w := New(Config{ID: "worker-1", DequeueInterval: 50 * time.Millisecond}, q, p, ex)
	return w, q, p
}

func TestWorkerHappyPath(t *testing.T) {
	fake := executor.NewFake()
	fake.Sleep = 10 * time.Millisecond
	w, q, p := newTestRig(t, 1, fake)

	require.NoError(t, q.Enqueue(context.Background(), types.Request{ID: "req-1", Config: types.RequestConfig{TaskTimeout: time.Second}}))

	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool {
		return q.GetStatus().Completed == 1
	}, time.Second, 10*time.Millisecond)

	summary := q.GetResultsSummary()
	assert.Equal(t, 1, summary.Passed)

	require.Eventually(t, func() bool {
		return p.GetStatus().Free == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerRetryThenFail(t *testing.T) {
	fake := executor.NewFake()
	fake.Sleep = 0
	fake.FailAlways = true
	w, q, _ := newTestRig(t, 1, fake)

	require.NoError(t, q.Enqueue(context.Background(), types.Request{
		ID:     "req-1",
		Config: types.RequestConfig{TaskTimeout: time.Second, MaxRetries: 2},
	}))

	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool {
		return q.GetStatus().Failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	summary := q.GetResultsSummary()
	require.Len(t, summary.FailedList, 1)
	assert.Contains(t, summary.FailedList[0].Error, "Worker error:")
}

func TestWorkerAcquisitionTimeoutFabricatesFailedResult(t *testing.T) {
	fake := executor.NewFake()
	w, q, p := newTestRig(t, 1, fake)

	// Exhaust the single workspace so the worker's own acquire blocks.
	held, err := p.Acquire(context.Background(), "holder", time.Second)
	require.NoError(t, err)
	defer func() { _ = p.Release(context.Background(), held) }()

	w2 := New(Config{ID: "worker-1", DequeueInterval: 50 * time.Millisecond, WorktreeAcquireTimeout: 100 * time.Millisecond}, q, p, fake)
	require.NoError(t, q.Enqueue(context.Background(), types.Request{ID: "req-1", Config: types.RequestConfig{TaskTimeout: time.Second}}))

	w2.Start()
	defer w2.Stop()

	require.Eventually(t, func() bool {
		return q.GetStatus().Failed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartStopIsIdempotent(t *testing.T) {
	fake := executor.NewFake()
	w, _, _ := newTestRig(t, 1, fake)

	w.Start()
	w.Start() // no-op, logged warning
	w.Stop()
	w.Stop() // no-op, logged warning

	assert.False(t, w.GetStatus().Running)
}
