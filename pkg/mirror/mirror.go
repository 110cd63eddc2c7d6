// Package mirror maintains a sparse, shallow local copy of a remote
// repository and switches it between versions.
//
// A Mirror is created once and reused across runs. Creation configures the
// origin remote and restricts the working tree to a single subdirectory;
// later runs only fetch and check out the requested versions. The actual git
// work is delegated to a Backend: ExecBackend drives the git binary and
// GoGitBackend uses go-git in process.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/classcatalog/pkg/git"
)

// ErrNoVersions is returned when Ensure must create a mirror but no version
// was requested.
var ErrNoVersions = errors.New("no versions requested")

// Config describes a mirror.
type Config struct {
	// Dir is the working copy directory.
	Dir string
	// URL is the origin remote.
	URL string
	// Subdir is the slash-separated directory the sparse checkout keeps.
	Subdir string
	// Depth limits fetched history; zero fetches everything.
	Depth int
}

// Backend performs the git operations behind a Mirror.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Create initializes a repository in cfg.Dir, points origin at cfg.URL
	// tracking versions, restricts the working tree to cfg.Subdir and fetches.
	Create(ctx context.Context, cfg Config, versions []string) error
	// Checkout fetches version from origin and detaches the working tree at
	// the fetched commit, returning its hash.
	Checkout(ctx context.Context, cfg Config, version string) (string, error)
}

// ObserveFunc receives the duration and outcome of each mirror operation.
type ObserveFunc func(ctx context.Context, operation string, elapsed time.Duration, err error)

// Mirror is a local repository mirror.
type Mirror struct {
	cfg     Config
	backend Backend
	observe ObserveFunc
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithObserver registers a callback invoked after Create and Checkout.
func WithObserver(fn ObserveFunc) Option {
	return func(m *Mirror) {
		m.observe = fn
	}
}

// New returns a Mirror for cfg using backend.
func New(cfg Config, backend Backend, opts ...Option) *Mirror {
	cfg.Subdir = path.Clean(cfg.Subdir)
	m := &Mirror{cfg: cfg, backend: backend}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the working copy directory.
func (m *Mirror) Dir() string {
	return m.cfg.Dir
}

// ContentDir returns the sparse subdirectory inside the working copy.
func (m *Mirror) ContentDir() string {
	return filepath.Join(m.cfg.Dir, filepath.FromSlash(m.cfg.Subdir))
}

// Backend returns the backend name.
func (m *Mirror) Backend() string {
	return m.backend.Name()
}

// Exists reports whether the mirror has already been created.
func (m *Mirror) Exists() bool {
	return git.IsRepository(m.cfg.Dir)
}

// Ensure creates the mirror if it does not exist and reports whether it did.
//
// An existing mirror is used as is: its remote and sparse settings are not
// touched. Versions that were not tracked when it was created are still
// fetched by name in Checkout.
//
// If creation fails, a directory Ensure created is removed again so the next
// run starts from scratch instead of reusing a half-initialized mirror.
func (m *Mirror) Ensure(ctx context.Context, versions []string) (bool, error) {
	if m.Exists() {
		return false, nil
	}
	if len(versions) == 0 {
		return false, ErrNoVersions
	}
	for _, v := range versions {
		if err := git.ValidateRef(v); err != nil {
			return false, err
		}
	}

	_, statErr := os.Stat(m.cfg.Dir)
	preexisting := statErr == nil
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return false, fmt.Errorf("creating mirror directory: %w", err)
	}

	start := time.Now()
	err := m.backend.Create(ctx, m.cfg, versions)
	m.record(ctx, "create", start, err)
	if err != nil {
		if !preexisting {
			_ = os.RemoveAll(m.cfg.Dir)
		}
		return false, fmt.Errorf("creating mirror %s: %w", m.cfg.Dir, err)
	}
	return true, nil
}

// Checkout switches the mirror to version and returns the commit it landed on.
func (m *Mirror) Checkout(ctx context.Context, version string) (string, error) {
	if err := git.ValidateRef(version); err != nil {
		return "", err
	}
	if !m.Exists() {
		return "", fmt.Errorf("%w: %s", git.ErrNotGitRepo, m.cfg.Dir)
	}

	start := time.Now()
	commit, err := m.backend.Checkout(ctx, m.cfg, version)
	m.record(ctx, "checkout", start, err)
	if err != nil {
		return "", fmt.Errorf("checking out %s: %w", version, err)
	}
	return commit, nil
}

func (m *Mirror) record(ctx context.Context, op string, start time.Time, err error) {
	if m.observe != nil {
		m.observe(ctx, op, time.Since(start), err)
	}
}
