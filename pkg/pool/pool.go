// Package pool manages a fixed set of isolated working copies of a single
// source repository, handed out as exclusive leases to workers. Each
// workspace is a linked working tree on its own branch, the same shape as
// the original worktree manager's FREE/BUSY/ERROR table, rebuilt here on a
// single mutex and condition variable instead of a polling loop.
package pool

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proactiva/planrunner/pkg/errs"
	"github.com/proactiva/planrunner/pkg/log"
	"github.com/proactiva/planrunner/pkg/types"
	"github.com/proactiva/planrunner/pkg/vcs"
)

// Config parameterizes Pool.Initialize.
type Config struct {
	// Size is the number of workspaces to materialize.
	Size int

	// BaseDir is the directory under which workspace directories
	// (wt-1, wt-2, ...) are created.
	BaseDir string

	// MainRepoPath is the repository the workspaces link against.
	MainRepoPath string

	// PrimaryBranch is the ref new workspace branches fork from, and the
	// ref workspaces are reset to on release. Defaults to "main".
	PrimaryBranch string

	// CreateTimeout bounds each workspace's creation. Defaults to 60s.
	CreateTimeout time.Duration

	// CleanupTimeout bounds the git operations of one release (one
	// deadline shared by all of its steps) and of each workspace's removal
	// during Cleanup. Defaults to 30s.
	CleanupTimeout time.Duration
}

func (c Config) primaryBranch() string {
	if c.PrimaryBranch != "" {
		return c.PrimaryBranch
	}
	return "main"
}

func (c Config) createTimeout() time.Duration {
	if c.CreateTimeout > 0 {
		return c.CreateTimeout
	}
	return 60 * time.Second
}

func (c Config) cleanupTimeout() time.Duration {
	if c.CleanupTimeout > 0 {
		return c.CleanupTimeout
	}
	return 30 * time.Second
}

// Pool owns a fixed table of workspaces and arbitrates exclusive access to
// them. All table mutation happens under mu; VCS calls never run while mu
// is held.
type Pool struct {
	vcs    vcs.VCS
	logger zerolog.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	cfg         Config
	initialized bool
	workspaces  map[string]*types.Workspace
	order       []string // workspace IDs in creation order, for deterministic scan

	nextTicket  uint64
	nextToServe uint64
}

// New constructs a Pool bound to the given VCS capability.
func New(v vcs.VCS) *Pool {
	p := &Pool{
		vcs:        v,
		logger:     log.WithComponent("pool"),
		workspaces: make(map[string]*types.Workspace),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Initialize materializes cfg.Size workspaces. Not re-entrant: calling it
// twice without an intervening Cleanup is a usage error.
func (p *Pool) Initialize(ctx context.Context, cfg Config) error {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return errs.ErrPoolAlreadyInitialized
	}
	p.cfg = cfg
	p.mu.Unlock()

	p.logger.Info().Int("size", cfg.Size).Str("base_dir", cfg.BaseDir).Msg("initializing workspace pool")

	for i := 1; i <= cfg.Size; i++ {
		id := fmt.Sprintf("wt-%d", i)
		ws, err := p.createWorkspace(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrWorkspaceCreationFailure, id, err)
		}
		p.mu.Lock()
		p.workspaces[id] = ws
		p.order = append(p.order, id)
		p.mu.Unlock()
		p.logger.Info().Str("workspace_id", id).Msg("workspace created")
	}

	p.mu.Lock()
	p.initialized = true
	p.mu.Unlock()
	p.logger.Info().Int("count", len(p.order)).Msg("workspace pool initialized")
	return nil
}

func (p *Pool) createWorkspace(ctx context.Context, id string) (*types.Workspace, error) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.createTimeout())
	defer cancel()

	path := filepath.Join(p.cfg.BaseDir, id)
	branch := "worktree-" + id

	// Destroy any stray workspace left over from a previous run.
	_ = p.vcs.RemoveWorktree(cctx, path)
	_ = p.vcs.DeleteBranch(cctx, p.cfg.MainRepoPath, branch)

	if err := p.vcs.AddWorktree(cctx, path, branch, p.cfg.primaryBranch()); err != nil {
		return nil, err
	}

	now := time.Now()
	return &types.Workspace{
		ID:         id,
		Path:       path,
		Branch:     branch,
		Status:     types.WorkspaceFree,
		CreatedAt:  now,
		LastUsedAt: now,
	}, nil
}

// Acquire blocks until a FREE workspace is available or timeout elapses,
// returning it marked BUSY and tagged with tag. Waiters are served in
// strict FIFO order of their Acquire call.
func (p *Pool) Acquire(ctx context.Context, tag string, timeout time.Duration) (*types.Workspace, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, errs.ErrPoolNotInitialized
	}

	ticket := p.nextTicket
	p.nextTicket++

	deadline := time.Now().Add(timeout)

	// A single timer armed for this call's deadline nudges cond.Wait so a
	// timed-out waiter doesn't block forever with nothing left to free a
	// workspace. Stopped once this call returns by any path.
	timer := time.AfterFunc(timeout, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	// ctx cancellation also needs to nudge a blocked cond.Wait; done is
	// closed once this call returns so the goroutine never outlives it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()

	for {
		if ctx.Err() != nil {
			if ticket == p.nextToServe {
				p.nextToServe++
				p.cond.Broadcast()
			}
			return nil, ctx.Err()
		}

		if ticket == p.nextToServe {
			if ws := p.firstFree(); ws != nil {
				p.nextToServe++
				p.cond.Broadcast()
				ws.Status = types.WorkspaceBusy
				ws.CurrentRequestID = tag
				ws.LastUsedAt = time.Now()
				p.logger.Info().Str("workspace_id", ws.ID).Str("tag", tag).Msg("workspace acquired")
				return ws, nil
			}
		}

		if time.Now().After(deadline) {
			if ticket == p.nextToServe {
				p.nextToServe++
				p.cond.Broadcast()
			}
			return nil, fmt.Errorf("%w: tag=%s", errs.ErrAcquisitionTimeout, tag)
		}

		p.cond.Wait()
	}
}

// firstFree returns the first FREE workspace in creation order, or nil.
// Must be called with mu held.
func (p *Pool) firstFree() *types.Workspace {
	for _, id := range p.order {
		if ws := p.workspaces[id]; ws.Status == types.WorkspaceFree {
			return ws
		}
	}
	return nil
}

// Release cleans the workspace and returns it to FREE. On cleanup failure
// the workspace moves to ERROR instead, and the error is returned.
func (p *Pool) Release(ctx context.Context, ws *types.Workspace) error {
	p.mu.Lock()
	if _, ok := p.workspaces[ws.ID]; !ok {
		p.mu.Unlock()
		p.logger.Warn().Str("workspace_id", ws.ID).Msg("release of unknown workspace ignored")
		return nil
	}
	p.mu.Unlock()

	p.logger.Info().Str("workspace_id", ws.ID).Msg("releasing workspace")

	if err := p.cleanWorkspace(ctx, ws); err != nil {
		p.mu.Lock()
		ws.Status = types.WorkspaceError
		p.cond.Broadcast()
		p.mu.Unlock()
		return fmt.Errorf("%w: %s: %v", errs.ErrWorkspaceCleanupFailure, ws.ID, err)
	}

	p.mu.Lock()
	ws.Status = types.WorkspaceFree
	ws.CurrentRequestID = ""
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

func (p *Pool) cleanWorkspace(ctx context.Context, ws *types.Workspace) error {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.cleanupTimeout())
	defer cancel()

	main := p.cfg.primaryBranch()
	if err := p.vcs.CheckoutForce(cctx, ws.Path, main); err != nil {
		return err
	}
	if err := p.vcs.ResetHard(cctx, ws.Path, "origin/"+main); err != nil {
		return err
	}
	if err := p.vcs.Clean(cctx, ws.Path); err != nil {
		return err
	}

	branches, err := p.vcs.ListBranches(cctx, ws.Path)
	if err != nil {
		return err
	}
	for _, b := range branches {
		if b == main || b == ws.Branch {
			continue
		}
		// Best-effort: a stray branch left by a prior run should not
		// block the workspace from going back to FREE.
		if err := p.vcs.DeleteBranch(cctx, ws.Path, b); err != nil {
			p.logger.Warn().Str("workspace_id", ws.ID).Str("branch", b).Err(err).Msg("stray branch delete failed")
		}
	}
	return nil
}

// HealthCheck verifies every workspace that is not BUSY is a valid linked
// working tree, moving any that fail Verify into ERROR. BUSY workspaces are
// skipped. Returns the set of workspace IDs found unhealthy.
func (p *Pool) HealthCheck(ctx context.Context) []string {
	p.mu.Lock()
	ids := append([]string{}, p.order...)
	p.mu.Unlock()

	var unhealthy []string
	for _, id := range ids {
		p.mu.Lock()
		ws := p.workspaces[id]
		busy := ws.Status == types.WorkspaceBusy
		path := ws.Path
		p.mu.Unlock()

		if busy {
			continue // never probe a workspace a worker currently owns
		}
		if err := p.vcs.Verify(ctx, path); err != nil {
			p.mu.Lock()
			ws.Status = types.WorkspaceError
			p.mu.Unlock()
			unhealthy = append(unhealthy, id)
		}
	}
	return unhealthy
}

// Cleanup removes all workspaces and marks the pool uninitialized.
// Best-effort: failures on individual workspaces are logged, not raised.
func (p *Pool) Cleanup(ctx context.Context) {
	p.mu.Lock()
	ids := append([]string{}, p.order...)
	p.mu.Unlock()

	p.logger.Info().Msg("cleaning up workspace pool")
	for _, id := range ids {
		p.mu.Lock()
		ws := p.workspaces[id]
		p.mu.Unlock()

		cctx, cancel := context.WithTimeout(ctx, p.cfg.cleanupTimeout())
		if err := p.vcs.RemoveWorktree(cctx, ws.Path); err != nil {
			p.logger.Error().Str("workspace_id", id).Err(err).Msg("failed to remove workspace")
		}
		if err := p.vcs.DeleteBranch(cctx, p.cfg.MainRepoPath, ws.Branch); err != nil {
			p.logger.Error().Str("workspace_id", id).Err(err).Msg("failed to delete branch")
		}
		cancel()
	}

	p.mu.Lock()
	p.workspaces = make(map[string]*types.Workspace)
	p.order = nil
	p.initialized = false
	p.nextTicket = 0
	p.nextToServe = 0
	p.mu.Unlock()
	p.logger.Info().Msg("workspace pool cleanup complete")
}

// Status summarizes pool occupancy for reporting.
type Status struct {
	Size        int
	Free        int
	Busy        int
	Error       int
	Initialized bool
}

// GetStatus returns a point-in-time snapshot of the pool table.
func (p *Pool) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{Size: len(p.order), Initialized: p.initialized}
	for _, id := range p.order {
		switch p.workspaces[id].Status {
		case types.WorkspaceFree:
			st.Free++
		case types.WorkspaceBusy:
			st.Busy++
		case types.WorkspaceError:
			st.Error++
		}
	}
	return st
}
