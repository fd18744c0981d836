package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proactiva/planrunner/pkg/errs"
	"github.com/proactiva/planrunner/pkg/executor"
	"github.com/proactiva/planrunner/pkg/log"
	"github.com/proactiva/planrunner/pkg/metrics"
	"github.com/proactiva/planrunner/pkg/pool"
	"github.com/proactiva/planrunner/pkg/queue"
	"github.com/proactiva/planrunner/pkg/types"
)

// State is the worker's lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StateRunningLoop State = "running_loop"
	StateStopping    State = "stopping"
	StateStopped     State = "stopped"
)

// Config holds per-worker tunables.
type Config struct {
	ID                   string
	DequeueInterval      time.Duration // default 1s
	WorktreeAcquireTimeout time.Duration // default 30s
	JoinTimeout          time.Duration // bound on Stop's wait for the loop to exit
}

func (c Config) dequeueInterval() time.Duration {
	if c.DequeueInterval > 0 {
		return c.DequeueInterval
	}
	return time.Second
}

func (c Config) acquireTimeout() time.Duration {
	if c.WorktreeAcquireTimeout > 0 {
		return c.WorktreeAcquireTimeout
	}
	return 30 * time.Second
}

func (c Config) joinTimeout() time.Duration {
	if c.JoinTimeout > 0 {
		return c.JoinTimeout
	}
	return 10 * time.Second
}

// Worker pairs pending requests with workspaces and drives their
// execution through an Executor, one request at a time, until stopped.
type Worker struct {
	cfg      Config
	queue    *queue.Queue
	pool     *pool.Pool
	executor executor.Executor
	logger   zerolog.Logger

	mu        sync.RWMutex
	state     State
	requestID string

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Worker bound to a shared queue, pool, and executor.
func New(cfg Config, q *queue.Queue, p *pool.Pool, ex executor.Executor) *Worker {
	return &Worker{
		cfg:      cfg,
		queue:    q,
		pool:     p,
		executor: ex,
		logger:   log.WithWorkerID(cfg.ID),
		state:    StateIdle,
	}
}

// Start transitions IDLE->RUNNING_LOOP and spawns the loop goroutine.
// Double-start is a no-op with a warning.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.state == StateRunningLoop {
		w.mu.Unlock()
		w.logger.Warn().Msg("worker already running, start is a no-op")
		return
	}
	w.state = StateRunningLoop
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run()
}

// Stop transitions RUNNING_LOOP->STOPPING, signals the loop, and waits for
// its exit up to the configured join timeout. Double-stop is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != StateRunningLoop {
		w.mu.Unlock()
		w.logger.Warn().Msg("worker not running, stop is a no-op")
		return
	}
	w.state = StateStopping
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(w.cfg.joinTimeout()):
		w.logger.Warn().Msg("worker did not exit within join timeout")
	}

	w.mu.Lock()
	w.state = StateStopped
	w.mu.Unlock()
}

func (w *Worker) run() {
	defer close(w.doneCh)
	w.logger.Info().Msg("worker loop started")

	for {
		select {
		case <-w.stopCh:
			w.logger.Info().Msg("worker loop stopped")
			return
		default:
		}

		w.processOne()
	}
}

// processOne runs exactly one iteration of the worker contract: dequeue
// with a short deadline, mark running, acquire a workspace, execute,
// classify, and always release.
func (w *Worker) processOne() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.dequeueInterval())
	req, err := w.queue.Dequeue(ctx)
	cancel()
	if err != nil {
		// Deadline or closed queue: re-check the stop signal on the next
		// pass. This is the only polling interval in the loop.
		return
	}

	w.mu.Lock()
	w.requestID = req.ID
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.requestID = ""
		w.mu.Unlock()
	}()

	w.queue.MarkRunning(req)
	logger := w.logger.With().Str("request_id", req.ID).Logger()
	logger.Info().Msg("request running")

	started := time.Now()
	ws, err := w.pool.Acquire(context.Background(), req.ID, w.cfg.acquireTimeout())
	if err != nil {
		result := types.Result{
			RequestID: req.ID,
			Status:    types.ResultFailed,
			Error:     fmt.Sprintf("%s: %v", errs.ErrAcquisitionTimeout, err),
			StartedAt: started,
		}
		w.finish(req, result, logger)
		return
	}
	metrics.ObserveAcquireWait(time.Since(started))

	defer func() {
		if relErr := w.pool.Release(context.Background(), ws); relErr != nil {
			logger.Error().Err(relErr).Str("workspace_id", ws.ID).Msg("workspace release failed")
		}
	}()

	taskTimeout := req.Config.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Minute
	}
	execCtx, execCancel := context.WithTimeout(context.Background(), taskTimeout)
	execStarted := time.Now()
	outcome, err := w.executor.Execute(execCtx, ws.Path, req)
	execCancel()
	metrics.ObserveTaskDuration(time.Since(execStarted))

	result := types.Result{
		RequestID:   req.ID,
		WorkspaceID: ws.ID,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	if err != nil {
		result.Status = types.ResultFailed
		result.Error = "Worker error: " + err.Error()
	} else {
		result.Status = outcome.Status
		result.TasksPassed = outcome.TasksPassed
		result.TasksFailed = outcome.TasksFailed
		result.Error = outcome.Error
	}

	w.finish(req, result, logger)
}

func (w *Worker) finish(req types.Request, result types.Result, logger zerolog.Logger) {
	if result.Status == types.ResultComplete {
		w.queue.MarkComplete(req.ID, result)
		metrics.RequestsPassed.Inc()
		logger.Info().Msg("request complete")
		return
	}

	if w.queue.RequeueForRetry(req) {
		metrics.RequestsRetried.Inc()
		logger.Warn().Str("error", result.Error).Msg("request failed, requeued for retry")
		return
	}

	w.queue.MarkFailed(req.ID, result)
	metrics.RequestsFailed.Inc()
	logger.Error().Str("error", result.Error).Msg("request failed, retries exhausted")
}

// Status reports the worker's observable state for the orchestrator.
type Status struct {
	ID        string
	Running   bool
	RequestID string
}

// GetStatus returns a point-in-time snapshot.
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{
		ID:        w.cfg.ID,
		Running:   w.state == StateRunningLoop,
		RequestID: w.requestID,
	}
}
