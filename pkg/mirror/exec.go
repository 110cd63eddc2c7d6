package mirror

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/classcatalog/pkg/git"
)

// ExecBackend drives the git binary through a git.Runner.
type ExecBackend struct {
	runner git.Runner
}

// NewExecBackend returns a backend running commands through runner.
func NewExecBackend(runner git.Runner) *ExecBackend {
	return &ExecBackend{runner: runner}
}

// Name implements Backend.
func (b *ExecBackend) Name() string { return "exec" }

// Create implements Backend.
func (b *ExecBackend) Create(ctx context.Context, cfg Config, versions []string) error {
	remote := []string{"remote", "add"}
	for _, v := range versions {
		remote = append(remote, "-t", v)
	}
	remote = append(remote, "origin", cfg.URL)

	steps := [][]string{
		{"init", "--quiet"},
		remote,
		{"sparse-checkout", "init", "--cone"},
		{"sparse-checkout", "set", cfg.Subdir},
		append(fetchArgs(cfg.Depth), versions...),
	}
	for _, args := range steps {
		if _, err := b.runner.Run(ctx, cfg.Dir, args...); err != nil {
			return err
		}
	}
	return nil
}

// Checkout implements Backend.
//
// FETCH_HEAD may name an annotated tag, so it is peeled to a commit before
// the checkout. HEAD is read back afterwards to confirm the working tree
// landed where expected.
func (b *ExecBackend) Checkout(ctx context.Context, cfg Config, version string) (string, error) {
	if _, err := b.runner.Run(ctx, cfg.Dir, append(fetchArgs(cfg.Depth), version)...); err != nil {
		return "", err
	}

	fetched, err := git.ReadFetchHead(cfg.Dir)
	if err != nil {
		return "", err
	}

	out, err := b.runner.Run(ctx, cfg.Dir, "rev-parse", "--verify", "--quiet", fetched+"^{commit}")
	if err != nil {
		return "", err
	}
	commit := strings.TrimSpace(string(out))
	if !git.IsHash(commit) {
		return "", fmt.Errorf("rev-parse %s returned %q", fetched, commit)
	}

	if _, err := b.runner.Run(ctx, cfg.Dir, "checkout", "--quiet", "--force", "--detach", commit); err != nil {
		return "", err
	}

	head, err := git.ReadHead(cfg.Dir)
	if err != nil {
		return "", err
	}
	if !head.Detached() || head.Hash != commit {
		return "", fmt.Errorf("checkout of %s left HEAD at %+v, want %s", version, head, commit)
	}
	return commit, nil
}

func fetchArgs(depth int) []string {
	args := []string{"fetch", "--quiet", "--no-tags"}
	if depth > 0 {
		args = append(args, "--depth", strconv.Itoa(depth))
	}
	return append(args, "origin")
}
