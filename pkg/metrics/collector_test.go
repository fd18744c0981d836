package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/proactiva/planrunner/pkg/pool"
	"github.com/proactiva/planrunner/pkg/queue"
	"github.com/proactiva/planrunner/pkg/types"
	"github.com/proactiva/planrunner/pkg/vcs"
)

func TestCollectorSamplesPoolAndQueueGauges(t *testing.T) {
	p := pool.New(vcs.NewFake())
	require.NoError(t, p.Initialize(context.Background(), pool.Config{
		Size: 2, BaseDir: "/tmp/collector-base", MainRepoPath: "/tmp/collector-repo",
	}))
	q := queue.New(5)
	require.NoError(t, q.Enqueue(context.Background(), types.Request{ID: "req-1"}))

	c := NewCollector(p, q)
	c.collect()

	require.Equal(t, float64(2), testutil.ToFloat64(WorkspacesTotal.WithLabelValues("free")))
	require.Equal(t, float64(1), testutil.ToFloat64(QueueDepth.WithLabelValues("pending")))
}
