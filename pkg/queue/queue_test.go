package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proactiva/planrunner/pkg/errs"
	"github.com/proactiva/planrunner/pkg/types"
)

func req(id string, maxRetries int) types.Request {
	return types.Request{ID: id, Config: types.RequestConfig{MaxRetries: maxRetries}, SubmittedAt: time.Now()}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(10)
	require.NoError(t, q.Enqueue(context.Background(), req("a", 0)))
	require.NoError(t, q.Enqueue(context.Background(), req("b", 0)))

	first, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID)

	second, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", second.ID)
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Enqueue(context.Background(), req("a", 0)))

	enqueued := make(chan struct{})
	go func() {
		_ = q.Enqueue(context.Background(), req("b", 0))
		close(enqueued)
	}()

	select {
	case <-enqueued:
		t.Fatal("enqueue should have blocked while queue is full")
	case <-time.After(100 * time.Millisecond):
	}

	_, err := q.Dequeue(context.Background())
	require.NoError(t, err)

	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after dequeue freed capacity")
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	q := New(10)
	q.Close()
	err := q.Enqueue(context.Background(), req("a", 0))
	assert.ErrorIs(t, err, errs.ErrQueueClosed)
}

func TestDequeueOnClosedEmptyQueueFails(t *testing.T) {
	q := New(10)
	q.Close()
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, errs.ErrQueueClosed)
}

func TestMarkCompleteAndFailed(t *testing.T) {
	q := New(10)
	r := req("a", 0)
	q.MarkRunning(r)

	st := q.GetStatus()
	assert.Equal(t, 1, st.Running)

	q.MarkComplete("a", types.Result{RequestID: "a", Status: types.ResultComplete})
	st = q.GetStatus()
	assert.Equal(t, 0, st.Running)
	assert.Equal(t, 1, st.Completed)

	summary := q.GetResultsSummary()
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, float64(100), summary.SuccessRate)
}

func TestRequeueForRetryRespectsMaxRetries(t *testing.T) {
	q := New(10)
	r := req("a", 2)
	q.MarkRunning(r)

	ok := q.RequeueForRetry(r)
	assert.True(t, ok)
	dequeued, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dequeued.RetryCount)

	q.MarkRunning(dequeued)
	ok = q.RequeueForRetry(dequeued)
	assert.True(t, ok)
	dequeued, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dequeued.RetryCount)

	q.MarkRunning(dequeued)
	ok = q.RequeueForRetry(dequeued)
	assert.False(t, ok, "third retry exceeds max_retries=2")
}

func TestWaitUntilEmptyBlocksUntilDrained(t *testing.T) {
	q := New(10)
	require.NoError(t, q.Enqueue(context.Background(), req("a", 0)))
	r, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	q.MarkRunning(r)

	drained := make(chan struct{})
	go func() {
		_ = q.WaitUntilEmpty(context.Background())
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("wait_until_empty should still be blocked with one request running")
	case <-time.After(100 * time.Millisecond):
	}

	q.MarkComplete("a", types.Result{RequestID: "a", Status: types.ResultComplete})

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("wait_until_empty did not wake after mark_complete")
	}
}

func TestClearResetsAllCollections(t *testing.T) {
	q := New(10)
	require.NoError(t, q.Enqueue(context.Background(), req("a", 0)))
	r, _ := q.Dequeue(context.Background())
	q.MarkRunning(r)
	q.MarkComplete("a", types.Result{RequestID: "a"})
	q.Close()

	q.Clear()
	st := q.GetStatus()
	assert.Equal(t, Status{}, st)

	require.NoError(t, q.Enqueue(context.Background(), req("b", 0)))
}

func TestRequestIDInAtMostOneCollection(t *testing.T) {
	q := New(10)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r := req(string(rune('a'+n)), 0)
			_ = q.Enqueue(context.Background(), r)
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	for i := 0; i < 5; i++ {
		r, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		seen[r.ID]++
		q.MarkRunning(r)
		q.MarkComplete(r.ID, types.Result{RequestID: r.ID})
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "request %s observed more than once", id)
	}
}
