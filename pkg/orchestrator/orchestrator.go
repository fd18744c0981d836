// Package orchestrator owns one session's Pool, Queue, and set of Workers:
// it wires them together, exposes submission and completion APIs, and
// aggregates their terminal state into a Report.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proactiva/planrunner/pkg/errs"
	"github.com/proactiva/planrunner/pkg/events"
	"github.com/proactiva/planrunner/pkg/executor"
	"github.com/proactiva/planrunner/pkg/httpstatus"
	"github.com/proactiva/planrunner/pkg/log"
	"github.com/proactiva/planrunner/pkg/metrics"
	"github.com/proactiva/planrunner/pkg/pool"
	"github.com/proactiva/planrunner/pkg/queue"
	"github.com/proactiva/planrunner/pkg/reconciler"
	"github.com/proactiva/planrunner/pkg/types"
	"github.com/proactiva/planrunner/pkg/vcs"
	"github.com/proactiva/planrunner/pkg/worker"
)

// State is the orchestrator's lifecycle state. Transitions are one-way;
// reuse after Stopped requires a fresh instance.
type State string

const (
	StateCreated     State = "created"
	StateInitialized State = "initialized"
	StateRunning     State = "running"
	StateDraining    State = "draining"
	StateStopped     State = "stopped"
)

// Config holds the tunables for one orchestrator session.
type Config struct {
	WorkerCount      int
	WorkspaceBaseDir string
	MainRepoPath     string
	PrimaryBranch    string // defaults to "main"
	MaxQueueSize     int    // <= 0 means unbounded

	DefaultMaxRetries  int           // used when a request omits Config.MaxRetries
	DefaultTaskTimeout time.Duration // used when a request omits Config.TaskTimeout
	AcquireTimeout     time.Duration // worker's per-acquire budget, default 30s
	DequeueInterval    time.Duration // worker's poll interval, default 1s

	WorkerJoinTimeout time.Duration // default 10s
	DrainTimeout      time.Duration // bound on shutdown's wait for queue drain, default 5m

	CleanupOnCompletion      bool
	PreserveFailedWorkspaces bool

	ReconcileInterval time.Duration // workspace health sweep interval, default 10s

	// StatusAddr, if non-empty, is the address the /health, /ready, and
	// /metrics HTTP server listens on. Empty disables the server.
	StatusAddr string
}

func (c Config) primaryBranch() string {
	if c.PrimaryBranch != "" {
		return c.PrimaryBranch
	}
	return "main"
}

func (c Config) drainTimeout() time.Duration {
	if c.DrainTimeout > 0 {
		return c.DrainTimeout
	}
	return 5 * time.Minute
}

func (c Config) workerJoinTimeout() time.Duration {
	if c.WorkerJoinTimeout > 0 {
		return c.WorkerJoinTimeout
	}
	return 10 * time.Second
}

// Orchestrator owns a Pool, a Queue, and a fleet of Workers for one
// session, from Initialize through Shutdown.
type Orchestrator struct {
	cfg      Config
	vcs      vcs.VCS
	executor executor.Executor
	logger   zerolog.Logger

	sessionID string

	mu         sync.RWMutex
	state      State
	pool       *pool.Pool
	queue      *queue.Queue
	workers    []*worker.Worker
	broker     *events.Broker
	reconciler *reconciler.Reconciler
	collector  *metrics.Collector
	statusSrv  *httpstatus.Server
	startedAt  time.Time
}

// New constructs an Orchestrator bound to v and ex, not yet initialized.
func New(cfg Config, v vcs.VCS, ex executor.Executor) *Orchestrator {
	sessionID := uuid.NewString()
	return &Orchestrator{
		cfg:       cfg,
		vcs:       v,
		executor:  ex,
		logger:    log.WithSessionID(sessionID),
		sessionID: sessionID,
		state:     StateCreated,
	}
}

// SessionID returns the session identifier assigned at construction.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Initialize creates the Pool (and initializes it), the Queue, and the
// configured number of Workers. A second call on an already-initialized
// orchestrator is a no-op.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateCreated {
		o.logger.Warn().Str("state", string(o.state)).Msg("initialize is a no-op past created")
		return nil
	}

	p := pool.New(o.vcs)
	if err := p.Initialize(ctx, pool.Config{
		Size:          o.cfg.WorkerCount,
		BaseDir:       o.cfg.WorkspaceBaseDir,
		MainRepoPath:  o.cfg.MainRepoPath,
		PrimaryBranch: o.cfg.primaryBranch(),
	}); err != nil {
		return fmt.Errorf("orchestrator initialize: %w", err)
	}

	q := queue.New(o.cfg.MaxQueueSize)

	workers := make([]*worker.Worker, 0, o.cfg.WorkerCount)
	for i := 0; i < o.cfg.WorkerCount; i++ {
		w := worker.New(worker.Config{
			ID:                     fmt.Sprintf("worker-%d", i),
			DequeueInterval:        o.cfg.DequeueInterval,
			WorktreeAcquireTimeout: o.cfg.AcquireTimeout,
			JoinTimeout:            o.cfg.workerJoinTimeout(),
		}, q, p, o.executor)
		workers = append(workers, w)
	}

	broker := events.NewBroker()
	rec := reconciler.New(p, broker, o.cfg.ReconcileInterval)
	collector := metrics.NewCollector(p, q)

	var statusSrv *httpstatus.Server
	if o.cfg.StatusAddr != "" {
		statusSrv = httpstatus.New(p, q)
	}

	o.pool = p
	o.queue = q
	o.workers = workers
	o.broker = broker
	o.reconciler = rec
	o.collector = collector
	o.statusSrv = statusSrv
	o.state = StateInitialized
	o.logger.Info().Int("workers", len(workers)).Msg("orchestrator initialized")
	return nil
}

// Start starts every Worker and records the session start time. It
// rejects the call unless the orchestrator is Initialized.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateInitialized {
		return fmt.Errorf("orchestrator start: %w (state=%s)", errs.ErrNotInitialized, o.state)
	}

	for _, w := range o.workers {
		w.Start()
	}

	o.broker.Start()
	o.reconciler.Start()
	o.collector.Start()

	if o.statusSrv != nil {
		addr := o.cfg.StatusAddr
		go func() {
			if err := o.statusSrv.Start(addr); err != nil && err != http.ErrServerClosed {
				o.logger.Error().Err(err).Str("addr", addr).Msg("status server stopped unexpectedly")
			}
		}()
	}

	o.startedAt = time.Now()
	o.state = StateRunning
	o.logger.Info().Msg("orchestrator running")
	return nil
}

// Submit enqueues a single request, applying configuration defaults for
// any zero-valued fields. Rejected once the orchestrator has begun
// shutting down.
func (o *Orchestrator) Submit(ctx context.Context, req types.Request) error {
	o.mu.RLock()
	q := o.queue
	state := o.state
	o.mu.RUnlock()

	if q == nil || state == StateDraining || state == StateStopped {
		return errs.ErrQueueClosed
	}

	if err := q.Enqueue(ctx, o.applyDefaults(req)); err != nil {
		return err
	}
	metrics.RequestsSubmitted.Inc()
	return nil
}

// SubmitBatch enqueues each request in order, stopping at the first
// error.
func (o *Orchestrator) SubmitBatch(ctx context.Context, reqs []types.Request) error {
	for _, req := range reqs {
		if err := o.Submit(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) applyDefaults(req types.Request) types.Request {
	if req.Config.MaxRetries == 0 {
		req.Config.MaxRetries = o.cfg.DefaultMaxRetries
	}
	if req.Config.TaskTimeout == 0 {
		req.Config.TaskTimeout = o.cfg.DefaultTaskTimeout
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return req
}

// WaitForCompletion blocks until the queue has fully drained (no pending
// or running requests), then returns a Report built from the queue's
// terminal state. It does not stop workers.
func (o *Orchestrator) WaitForCompletion(ctx context.Context) (types.Report, error) {
	o.mu.RLock()
	q := o.queue
	startedAt := o.startedAt
	workerCount := len(o.workers)
	o.mu.RUnlock()

	if q == nil {
		return types.Report{}, errs.ErrNotInitialized
	}

	if err := q.WaitUntilEmpty(ctx); err != nil {
		return types.Report{}, fmt.Errorf("wait for completion: %w", err)
	}

	return o.buildReport(startedAt, workerCount), nil
}

func (o *Orchestrator) buildReport(startedAt time.Time, workerCount int) types.Report {
	summary := o.queue.GetResultsSummary()

	status := types.ReportComplete
	switch {
	case summary.Total == 0:
		status = types.ReportComplete
	case summary.Failed == summary.Total:
		status = types.ReportFailed
	case summary.Failed > 0:
		status = types.ReportPartialSuccess
	}

	now := time.Now()
	return types.Report{
		SessionID:        o.sessionID,
		Status:           status,
		StartedAt:        startedAt,
		CompletedAt:      now,
		Duration:         now.Sub(startedAt),
		TotalRequests:    summary.Total,
		Passed:           summary.Passed,
		Failed:           summary.Failed,
		SuccessRate:      summary.SuccessRate,
		CompletedResults: summary.Completed,
		FailedResults:    summary.FailedList,
		NumWorkers:       workerCount,
	}
}

// Shutdown closes the queue to new submissions, waits for drain with a
// bounded timeout, stops all workers concurrently, and — if configured —
// cleans the pool. Shutdown errors are logged but never prevent the
// remaining teardown steps from running.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateStopped {
		o.mu.Unlock()
		return nil
	}
	o.state = StateDraining
	q := o.queue
	p := o.pool
	workers := o.workers
	rec := o.reconciler
	collector := o.collector
	broker := o.broker
	statusSrv := o.statusSrv
	o.mu.Unlock()

	o.logger.Info().Msg("orchestrator draining")

	if rec != nil {
		rec.Stop()
	}
	if collector != nil {
		collector.Stop()
	}
	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn().Err(err).Msg("status server did not shut down cleanly")
		}
		cancel()
	}
	if broker != nil {
		broker.Stop()
	}

	if q != nil {
		q.Close()

		drainCtx, cancel := context.WithTimeout(ctx, o.cfg.drainTimeout())
		if err := q.WaitUntilEmpty(drainCtx); err != nil {
			o.logger.Warn().Err(err).Msg("queue did not drain before shutdown timeout")
		}
		cancel()
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()

	hadFailures := q != nil && q.GetStatus().Failed > 0
	if p != nil && o.cfg.CleanupOnCompletion && (!hadFailures || !o.cfg.PreserveFailedWorkspaces) {
		p.Cleanup(ctx)
	}

	o.mu.Lock()
	o.state = StateStopped
	o.mu.Unlock()
	o.logger.Info().Msg("orchestrator stopped")
	return nil
}

// Run is a convenience composition of Initialize, Start, SubmitBatch,
// WaitForCompletion, and Shutdown, returning the final report.
func (o *Orchestrator) Run(ctx context.Context, reqs []types.Request) (types.Report, error) {
	if err := o.Initialize(ctx); err != nil {
		return types.Report{}, err
	}
	if err := o.Start(); err != nil {
		return types.Report{}, err
	}
	if err := o.SubmitBatch(ctx, reqs); err != nil {
		return types.Report{}, err
	}
	report, err := o.WaitForCompletion(ctx)
	if shutdownErr := o.Shutdown(ctx); shutdownErr != nil {
		o.logger.Error().Err(shutdownErr).Msg("shutdown reported an error")
	}
	if err != nil {
		return types.Report{}, err
	}
	return report, nil
}

// Status is a point-in-time snapshot of the orchestrator and its owned
// components.
type Status struct {
	SessionID   string
	State       State
	Initialized bool
	Running     bool
	StartedAt   time.Time
	Queue       queue.Status
	Pool        pool.Status
	Workers     []worker.Status
}

// GetStatus returns a Status snapshot.
func (o *Orchestrator) GetStatus() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status := Status{
		SessionID:   o.sessionID,
		State:       o.state,
		Initialized: o.state != StateCreated,
		Running:     o.state == StateRunning,
		StartedAt:   o.startedAt,
	}
	if o.queue != nil {
		status.Queue = o.queue.GetStatus()
	}
	if o.pool != nil {
		status.Pool = o.pool.GetStatus()
	}
	for _, w := range o.workers {
		status.Workers = append(status.Workers, w.GetStatus())
	}
	return status
}
