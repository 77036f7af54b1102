// Package vcs reports on the version-control working tree the loop runs in.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotRepository is returned when Dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// WorkingTree reports whether the working tree has uncommitted changes.
type WorkingTree interface {
	Dirty(ctx context.Context) (bool, error)
}

// GitTree inspects a git work tree with the git CLI.
type GitTree struct {
	Dir string
	// Binary defaults to "git".
	Binary string
}

// Dirty runs `git status --porcelain` and reports whether it printed
// anything. Untracked files count as changes.
func (g *GitTree) Dirty(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Changes returns the porcelain status lines, one per changed path.
func (g *GitTree) Changes(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (g *GitTree) run(ctx context.Context, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.Dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "not a git repository") {
			return "", fmt.Errorf("%s: %w", g.Dir, ErrNotRepository)
		}
		return "", fmt.Errorf("git %s failed: %w\nOutput: %s",
			strings.Join(args, " "), err, string(output))
	}
	return string(output), nil
}

// StaticTree is a WorkingTree with a fixed answer.
type StaticTree struct {
	IsDirty bool
	Err     error
}

func (s StaticTree) Dirty(context.Context) (bool, error) {
	return s.IsDirty, s.Err
}
