package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitCLI implements VCS by shelling out to the git binary, the same way
// the original worktree manager drove git via subprocess calls with a
// bounded timeout per invocation.
type GitCLI struct {
	// MainRepoPath is the working directory for worktree add/remove. Every
	// other command (branch list/delete, checkout, reset, clean, verify)
	// runs in the workDir supplied by the caller.
	MainRepoPath string

	// Bin is the git executable to invoke; defaults to "git" if empty.
	Bin string
}

func (g *GitCLI) bin() string {
	if g.Bin != "" {
		return g.Bin
	}
	return "git"
}

func (g *GitCLI) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), ctx.Err())
		}
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (g *GitCLI) AddWorktree(ctx context.Context, path, branch, baseRef string) error {
	_, err := g.run(ctx, g.MainRepoPath, "worktree", "add", path, "-b", branch, baseRef)
	return err
}

func (g *GitCLI) RemoveWorktree(ctx context.Context, path string) error {
	_, err := g.run(ctx, g.MainRepoPath, "worktree", "remove", path, "--force")
	return err
}

func (g *GitCLI) ListBranches(ctx context.Context, workDir string) ([]string, error) {
	out, err := g.run(ctx, workDir, "branch", "--list")
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		line = strings.TrimSpace(line)
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

func (g *GitCLI) DeleteBranch(ctx context.Context, workDir, branch string) error {
	_, err := g.run(ctx, workDir, "branch", "-D", branch)
	return err
}

func (g *GitCLI) CheckoutForce(ctx context.Context, workDir, ref string) error {
	_, err := g.run(ctx, workDir, "checkout", "-f", ref)
	return err
}

func (g *GitCLI) ResetHard(ctx context.Context, workDir, ref string) error {
	_, err := g.run(ctx, workDir, "reset", "--hard", ref)
	return err
}

func (g *GitCLI) Clean(ctx context.Context, workDir string) error {
	_, err := g.run(ctx, workDir, "clean", "-fd")
	return err
}

func (g *GitCLI) Verify(ctx context.Context, workDir string) error {
	_, err := g.run(ctx, workDir, "rev-parse", "--is-inside-work-tree")
	return err
}

var _ VCS = (*GitCLI)(nil)
