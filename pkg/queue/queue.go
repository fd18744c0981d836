// Package queue is the bounded FIFO buffer of pending requests, plus the
// in-memory accounting of which requests are running, completed, or
// failed. Mirrors the original test orchestrator's four collections
// (pending, running, completed, failed) on a single mutex with three
// condition variables (not full, not empty, drained).
package queue

import (
	"container/list"
	"context"
	"sync"

	"github.com/proactiva/planrunner/pkg/errs"
	"github.com/proactiva/planrunner/pkg/log"
	"github.com/proactiva/planrunner/pkg/types"
	"github.com/rs/zerolog"
)

// Queue buffers pending requests up to Capacity and tracks running,
// completed, and failed requests by ID.
type Queue struct {
	logger   zerolog.Logger
	capacity int

	mu        sync.Mutex
	notFull   *sync.Cond
	notEmpty  *sync.Cond
	drained   *sync.Cond
	closed    bool
	pending   *list.List // of types.Request
	running   map[string]types.Request
	completed map[string]types.Result
	failed    map[string]types.Result
}

// New creates a Queue with the given bounded capacity. capacity <= 0 means
// unbounded.
func New(capacity int) *Queue {
	q := &Queue{
		logger:    log.WithComponent("queue"),
		capacity:  capacity,
		pending:   list.New(),
		running:   make(map[string]types.Request),
		completed: make(map[string]types.Result),
		failed:    make(map[string]types.Result),
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) full() bool {
	return q.capacity > 0 && q.pending.Len() >= q.capacity
}

// Enqueue places req at the tail of pending, blocking while the queue is
// full. Returns ErrQueueClosed if Close was called.
func (q *Queue) Enqueue(ctx context.Context, req types.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.full() && !q.closed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		q.notFull.Wait()
	}
	if q.closed {
		return errs.ErrQueueClosed
	}

	q.pending.PushBack(req)
	q.notEmpty.Broadcast()
	return nil
}

// EnqueueBatch enqueues each request in order; each obeys back-pressure
// individually. Stops and returns the first error encountered.
func (q *Queue) EnqueueBatch(ctx context.Context, reqs []types.Request) error {
	for _, req := range reqs {
		if err := q.Enqueue(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Dequeue blocks until a request is available, ctx is done, or the queue
// is closed with nothing pending.
func (q *Queue) Dequeue(ctx context.Context) (types.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	for q.pending.Len() == 0 {
		if q.closed {
			return types.Request{}, errs.ErrQueueClosed
		}
		if ctx.Err() != nil {
			return types.Request{}, ctx.Err()
		}
		q.notEmpty.Wait()
	}

	front := q.pending.Front()
	q.pending.Remove(front)
	q.notFull.Broadcast()
	return front.Value.(types.Request), nil
}

// MarkRunning moves req into the running set.
func (q *Queue) MarkRunning(req types.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running[req.ID] = req
}

// MarkComplete removes id from running and records result as completed.
// Idempotent after the first call for id.
func (q *Queue) MarkComplete(id string, result types.Result) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
	q.completed[id] = result
	q.notifyDrainLocked()
}

// MarkFailed removes id from running and records result as failed.
func (q *Queue) MarkFailed(id string, result types.Result) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
	q.failed[id] = result
	q.notifyDrainLocked()
}

// RequeueForRetry increments req's retry count and re-enqueues it at the
// tail if retries remain, returning true. Otherwise it leaves state
// untouched and returns false; the caller must then call MarkFailed.
func (q *Queue) RequeueForRetry(req types.Request) bool {
	q.mu.Lock()
	if req.RetryCount+1 > req.Config.MaxRetries {
		q.mu.Unlock()
		return false
	}
	req.RetryCount++
	delete(q.running, req.ID)
	q.pending.PushBack(req)
	q.notEmpty.Broadcast()
	q.notifyDrainLocked()
	q.mu.Unlock()
	return true
}

// notifyDrainLocked wakes WaitUntilEmpty waiters so they re-evaluate the
// drain predicate. Must be called with mu held.
func (q *Queue) notifyDrainLocked() {
	q.drained.Broadcast()
}

// WaitUntilEmpty blocks until pending and running are both empty.
func (q *Queue) WaitUntilEmpty(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.drained.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	for q.pending.Len() > 0 || len(q.running) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		q.drained.Wait()
	}
	return nil
}

// Close forbids further Enqueue calls and wakes any blocked Enqueue or
// Dequeue callers. Pending requests already in the queue remain
// dequeueable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Status is a point-in-time snapshot of queue occupancy.
type Status struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Closed    bool
}

// GetStatus returns the current Status.
func (q *Queue) GetStatus() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Pending:   q.pending.Len(),
		Running:   len(q.running),
		Completed: len(q.completed),
		Failed:    len(q.failed),
		Closed:    q.closed,
	}
}

// ResultsSummary aggregates terminal results for reporting.
type ResultsSummary struct {
	Total       int
	Passed      int
	Failed      int
	SuccessRate float64
	Completed   []types.Result
	FailedList  []types.Result
}

// GetResultsSummary snapshots completed and failed results.
func (q *Queue) GetResultsSummary() ResultsSummary {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := ResultsSummary{
		Passed: len(q.completed),
		Failed: len(q.failed),
	}
	s.Total = s.Passed + s.Failed
	if s.Total > 0 {
		s.SuccessRate = 100 * float64(s.Passed) / float64(s.Total)
	}
	for _, r := range q.completed {
		s.Completed = append(s.Completed, r)
	}
	for _, r := range q.failed {
		s.FailedList = append(s.FailedList, r)
	}
	return s
}

// Clear empties all four collections. Primarily for reuse/testing.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Init()
	q.running = make(map[string]types.Request)
	q.completed = make(map[string]types.Result)
	q.failed = make(map[string]types.Result)
	q.closed = false
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
	q.drained.Broadcast()
}
