package vcs

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a deterministic, in-memory VCS double for tests. It tracks
// worktree paths and branches without touching the filesystem, and can be
// configured to fail specific operations.
type Fake struct {
	mu        sync.Mutex
	worktrees map[string]string // path -> branch
	branches  map[string]bool

	// FailOn, if set, returns FailErr whenever the named method is
	// invoked (e.g. "AddWorktree").
	FailOn  string
	FailErr error
}

// NewFake creates an empty Fake VCS.
func NewFake() *Fake {
	return &Fake{
		worktrees: make(map[string]string),
		branches:  map[string]bool{"main": true},
	}
}

func (f *Fake) shouldFail(method string) error {
	if f.FailOn == method {
		if f.FailErr != nil {
			return f.FailErr
		}
		return fmt.Errorf("fake vcs: %s configured to fail", method)
	}
	return nil
}

func (f *Fake) AddWorktree(ctx context.Context, path, branch, baseRef string) error {
	if err := f.shouldFail("AddWorktree"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.worktrees[path] = branch
	f.branches[branch] = true
	return nil
}

func (f *Fake) RemoveWorktree(ctx context.Context, path string) error {
	if err := f.shouldFail("RemoveWorktree"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.worktrees, path)
	return nil
}

func (f *Fake) ListBranches(ctx context.Context, workDir string) ([]string, error) {
	if err := f.shouldFail("ListBranches"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for b := range f.branches {
		out = append(out, b)
	}
	return out, nil
}

func (f *Fake) DeleteBranch(ctx context.Context, workDir, branch string) error {
	if err := f.shouldFail("DeleteBranch"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.branches, branch)
	return nil
}

func (f *Fake) CheckoutForce(ctx context.Context, workDir, ref string) error {
	return f.shouldFail("CheckoutForce")
}

func (f *Fake) ResetHard(ctx context.Context, workDir, ref string) error {
	return f.shouldFail("ResetHard")
}

func (f *Fake) Clean(ctx context.Context, workDir string) error {
	return f.shouldFail("Clean")
}

func (f *Fake) Verify(ctx context.Context, workDir string) error {
	return f.shouldFail("Verify")
}

var _ VCS = (*Fake)(nil)
