// Package vcs is the version-control capability the workspace pool needs:
// linked working trees over a single repository. The pool never shells out
// to git directly; it talks to this interface so tests can substitute a
// deterministic fake.
package vcs

import "context"

// VCS is the set of operations the workspace pool needs from a version
// control system with linked-working-tree support. Every call is bounded
// by ctx, and the caller supplies the deadline (the pool sets 30-60s per
// operation). GitCLI adds no timeout of its own.
type VCS interface {
	// AddWorktree links a new working tree at path, on a new branch
	// named branch, based on the ref baseRef.
	AddWorktree(ctx context.Context, path, branch, baseRef string) error

	// RemoveWorktree force-removes the linked working tree at path.
	RemoveWorktree(ctx context.Context, path string) error

	// ListBranches lists local branch names in the repository rooted at
	// workDir.
	ListBranches(ctx context.Context, workDir string) ([]string, error)

	// DeleteBranch force-deletes a local branch.
	DeleteBranch(ctx context.Context, workDir, branch string) error

	// CheckoutForce force-checks-out ref in workDir, discarding local
	// modifications.
	CheckoutForce(ctx context.Context, workDir, ref string) error

	// ResetHard hard-resets workDir to ref.
	ResetHard(ctx context.Context, workDir, ref string) error

	// Clean removes untracked files and directories from workDir.
	Clean(ctx context.Context, workDir string) error

	// Verify checks that workDir is a valid linked working copy of the
	// repository; a non-nil error describes the defect.
	Verify(ctx context.Context, workDir string) error
}
