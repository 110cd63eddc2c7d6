package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/fyrsmithlabs/classcatalog/pkg/git"
)

const remoteName = "origin"

// GoGitBackend performs mirror operations in process with go-git.
//
// go-git keeps no sparse-checkout state on disk, so the subdirectory
// restriction is applied on every checkout.
type GoGitBackend struct {
	timeout time.Duration
}

// GoGitOption configures a GoGitBackend.
type GoGitOption func(*GoGitBackend)

// WithFetchTimeout bounds each network operation, like the command timeout
// of the exec backend. Zero means no limit.
func WithFetchTimeout(d time.Duration) GoGitOption {
	return func(b *GoGitBackend) {
		b.timeout = d
	}
}

// NewGoGitBackend returns a go-git backed mirror backend.
func NewGoGitBackend(opts ...GoGitOption) *GoGitBackend {
	b := &GoGitBackend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// withTimeout derives the context for one go-git operation.
func (b *GoGitBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Name implements Backend.
func (b *GoGitBackend) Name() string { return "go-git" }

// Create implements Backend.
func (b *GoGitBackend) Create(ctx context.Context, cfg Config, versions []string) error {
	repo, err := gogit.PlainInit(cfg.Dir, false)
	if err != nil {
		return opError(cfg.Dir, err, "init")
	}

	specs := make([]config.RefSpec, 0, len(versions))
	for _, v := range versions {
		specs = append(specs, branchRefSpec(v))
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name:  remoteName,
		URLs:  []string{cfg.URL},
		Fetch: specs,
	})
	if err != nil {
		return opError(cfg.Dir, err, "remote", "add", remoteName, cfg.URL)
	}

	for _, v := range versions {
		if _, err := b.fetchVersion(ctx, repo, cfg, v); err != nil {
			return err
		}
	}
	return nil
}

// Checkout implements Backend.
func (b *GoGitBackend) Checkout(ctx context.Context, cfg Config, version string) (string, error) {
	repo, err := gogit.PlainOpen(cfg.Dir)
	if err != nil {
		return "", opError(cfg.Dir, err, "open")
	}

	ref, err := b.fetchVersion(ctx, repo, cfg, version)
	if err != nil {
		return "", err
	}

	commit, err := peel(repo, ref.Hash())
	if err != nil {
		return "", opError(cfg.Dir, err, "rev-parse", ref.Name().String()+"^{commit}")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", opError(cfg.Dir, err, "worktree")
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Hash:                      commit,
		Force:                     true,
		SparseCheckoutDirectories: []string{cfg.Subdir},
	})
	if err != nil {
		return "", opError(cfg.Dir, err, "checkout", "--force", "--detach", commit.String())
	}

	head, err := repo.Head()
	if err != nil {
		return "", opError(cfg.Dir, err, "rev-parse", "HEAD")
	}
	if head.Hash() != commit {
		return "", fmt.Errorf("checkout of %s left HEAD at %s, want %s", version, head.Hash(), commit)
	}
	return commit.String(), nil
}

// fetchVersion fetches version as a branch, falling back to a tag, and
// returns the local reference it was stored under.
func (b *GoGitBackend) fetchVersion(ctx context.Context, repo *gogit.Repository, cfg Config, version string) (*plumbing.Reference, error) {
	candidates := []struct {
		spec config.RefSpec
		name plumbing.ReferenceName
	}{
		{branchRefSpec(version), plumbing.NewRemoteReferenceName(remoteName, version)},
		{tagRefSpec(version), plumbing.NewTagReferenceName(version)},
	}

	var lastErr error
	for _, c := range candidates {
		err := b.fetch(ctx, repo, c.spec, cfg.Depth)
		if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			lastErr = err
			var noMatch gogit.NoMatchingRefSpecError
			if errors.As(err, &noMatch) {
				continue
			}
			return nil, opError(cfg.Dir, err, fetchDescription(cfg.Depth, c.spec)...)
		}

		ref, err := repo.Reference(c.name, true)
		if err != nil {
			return nil, opError(cfg.Dir, err, "show-ref", c.name.String())
		}
		return ref, nil
	}
	return nil, opError(cfg.Dir, fmt.Errorf("couldn't find remote ref %s: %w", version, lastErr), "fetch", remoteName, version)
}

func (b *GoGitBackend) fetch(ctx context.Context, repo *gogit.Repository, spec config.RefSpec, depth int) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	// go-git only notices cancellation between reads.
	if err := ctx.Err(); err != nil {
		return err
	}
	return repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{spec},
		Depth:      depth,
		Tags:       gogit.NoTags,
		Force:      true,
	})
}

// peel resolves an annotated tag to the commit it points at.
func peel(repo *gogit.Repository, h plumbing.Hash) (plumbing.Hash, error) {
	tag, err := repo.TagObject(h)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return h, nil
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commit, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.Hash, nil
}

func branchRefSpec(version string) config.RefSpec {
	return config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", version, remoteName, version))
}

func tagRefSpec(version string) config.RefSpec {
	return config.RefSpec(fmt.Sprintf("+refs/tags/%s:refs/tags/%s", version, version))
}

func fetchDescription(depth int, spec config.RefSpec) []string {
	args := fetchArgs(depth)
	return append(args, spec.String())
}

// opError reports a go-git failure the same way the exec backend reports a
// failed command, so callers match both with git.ErrCommandFailed.
func opError(dir string, err error, args ...string) error {
	return &git.CommandError{
		Args:     args,
		Dir:      dir,
		ExitCode: -1,
		Err:      err,
	}
}
