package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proactiva/planrunner/pkg/events"
	"github.com/proactiva/planrunner/pkg/pool"
	"github.com/proactiva/planrunner/pkg/vcs"
)

func TestReconcileFlagsUnverifiableWorkspaceAndPublishesEvent(t *testing.T) {
	fake := vcs.NewFake()
	p := pool.New(fake)
	require.NoError(t, p.Initialize(context.Background(), pool.Config{
		Size: 2, BaseDir: "/tmp/recbase", MainRepoPath: "/tmp/recrepo",
	}))

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	fake.FailOn = "Verify"

	r := New(p, broker, 20*time.Millisecond)
	r.Start()
	defer r.Stop()

	select {
	case evt := <-sub:
		require.Equal(t, events.EventWorkspaceError, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a workspace error event from the reconciliation sweep")
	}

	status := p.GetStatus()
	require.Greater(t, status.Error, 0)
}

func TestStopIsIdempotentAndSafeWithNilBroker(t *testing.T) {
	fake := vcs.NewFake()
	p := pool.New(fake)
	require.NoError(t, p.Initialize(context.Background(), pool.Config{
		Size: 1, BaseDir: "/tmp/recbase2", MainRepoPath: "/tmp/recrepo2",
	}))

	r := New(p, nil, 10*time.Millisecond)
	r.Start()
	time.Sleep(30 * time.Millisecond)
	r.Stop()
	r.Stop()
}
