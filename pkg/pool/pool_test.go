package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proactiva/planrunner/pkg/errs"
	"github.com/proactiva/planrunner/pkg/types"
	"github.com/proactiva/planrunner/pkg/vcs"
)

func testConfig() Config {
	return Config{Size: 2, BaseDir: "/tmp/plans-worktrees", MainRepoPath: "/tmp/plans-repo"}
}

func TestInitializeCreatesConfiguredSize(t *testing.T) {
	p := New(vcs.NewFake())
	err := p.Initialize(context.Background(), testConfig())
	require.NoError(t, err)

	st := p.GetStatus()
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, 2, st.Free)
	assert.True(t, st.Initialized)
}

func TestInitializeTwiceIsUsageError(t *testing.T) {
	p := New(vcs.NewFake())
	require.NoError(t, p.Initialize(context.Background(), testConfig()))

	err := p.Initialize(context.Background(), testConfig())
	assert.ErrorIs(t, err, errs.ErrPoolAlreadyInitialized)
}

func TestInitializeCleanupInitializeYieldsUsablePool(t *testing.T) {
	p := New(vcs.NewFake())
	require.NoError(t, p.Initialize(context.Background(), testConfig()))
	p.Cleanup(context.Background())
	require.NoError(t, p.Initialize(context.Background(), testConfig()))

	st := p.GetStatus()
	assert.Equal(t, 2, st.Free)
}

func TestAcquireBeforeInitializeFails(t *testing.T) {
	p := New(vcs.NewFake())
	_, err := p.Acquire(context.Background(), "tag", time.Second)
	assert.ErrorIs(t, err, errs.ErrPoolNotInitialized)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(vcs.NewFake())
	require.NoError(t, p.Initialize(context.Background(), testConfig()))

	ws, err := p.Acquire(context.Background(), "req-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.WorkspaceBusy, ws.Status)
	assert.Equal(t, "req-1", ws.CurrentRequestID)

	st := p.GetStatus()
	assert.Equal(t, 1, st.Busy)
	assert.Equal(t, 1, st.Free)

	require.NoError(t, p.Release(context.Background(), ws))
	assert.Equal(t, types.WorkspaceFree, ws.Status)
	assert.Empty(t, ws.CurrentRequestID)

	st = p.GetStatus()
	assert.Equal(t, 2, st.Free)
}

func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	p := New(vcs.NewFake())
	require.NoError(t, p.Initialize(context.Background(), Config{Size: 1, BaseDir: "/tmp/x", MainRepoPath: "/tmp/y"}))

	ws, err := p.Acquire(context.Background(), "holder", time.Second)
	require.NoError(t, err)
	_ = ws

	start := time.Now()
	_, err = p.Acquire(context.Background(), "waiter", 500*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, errs.ErrAcquisitionTimeout)
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 700*time.Millisecond)
}

func TestAcquireServesWaitersFIFO(t *testing.T) {
	p := New(vcs.NewFake())
	require.NoError(t, p.Initialize(context.Background(), Config{Size: 1, BaseDir: "/tmp/x", MainRepoPath: "/tmp/y"}))

	held, err := p.Acquire(context.Background(), "holder", time.Second)
	require.NoError(t, err)

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, tag := range []string{"first", "second", "third"} {
		tag := tag
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := p.Acquire(context.Background(), tag, 5*time.Second)
			if err == nil {
				mu.Lock()
				order = append(order, tag)
				mu.Unlock()
				_ = p.Release(context.Background(), ws)
			}
		}()
		time.Sleep(20 * time.Millisecond) // ensure acquire() calls are issued in order
	}

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Release(context.Background(), held))
	wg.Wait()

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestReleaseCleanupFailureMarksError(t *testing.T) {
	f := vcs.NewFake()
	f.FailOn = "CheckoutForce"
	p := New(f)
	require.NoError(t, p.Initialize(context.Background(), testConfig()))

	ws, err := p.Acquire(context.Background(), "req-1", time.Second)
	require.NoError(t, err)

	err = p.Release(context.Background(), ws)
	assert.ErrorIs(t, err, errs.ErrWorkspaceCleanupFailure)
	assert.Equal(t, types.WorkspaceError, ws.Status)
}

func TestHealthCheckFlagsUnverifiableWorkspace(t *testing.T) {
	f := vcs.NewFake()
	p := New(f)
	require.NoError(t, p.Initialize(context.Background(), testConfig()))

	f.FailOn = "Verify"
	unhealthy := p.HealthCheck(context.Background())
	assert.Len(t, unhealthy, 2)

	st := p.GetStatus()
	assert.Equal(t, 2, st.Error)
}

func TestHealthCheckSkipsBusyWorkspaces(t *testing.T) {
	f := vcs.NewFake()
	p := New(f)
	require.NoError(t, p.Initialize(context.Background(), testConfig()))

	ws, err := p.Acquire(context.Background(), "req-1", time.Second)
	require.NoError(t, err)

	f.FailOn = "Verify"
	unhealthy := p.HealthCheck(context.Background())
	assert.Len(t, unhealthy, 1) // only the non-busy workspace gets probed

	assert.Equal(t, types.WorkspaceBusy, ws.Status)
}
