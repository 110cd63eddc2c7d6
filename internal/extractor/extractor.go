// Package extractor runs the class catalog extraction: it brings the mirror
// up to date, checks out each requested version in turn and writes one
// catalog file per version.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/classcatalog/internal/catalog"
	"github.com/fyrsmithlabs/classcatalog/internal/config"
	"github.com/fyrsmithlabs/classcatalog/internal/logging"
	"github.com/fyrsmithlabs/classcatalog/internal/metrics"
	"github.com/fyrsmithlabs/classcatalog/internal/telemetry"
	"github.com/fyrsmithlabs/classcatalog/pkg/mirror"
)

// ErrMirrorBusy is returned when another run holds the mirror lock.
var ErrMirrorBusy = errors.New("mirror is locked by another run")

// Options controls what a Service extracts and where it writes.
type Options struct {
	// RepoURL is recorded in catalog headers.
	RepoURL string
	// Subdir is the slash-separated directory entries are read from.
	Subdir     string
	Filter     catalog.Filter
	OutputDir  string
	FilePrefix string
	// FailurePolicy is config.PolicyFailFast or config.PolicyFailSoft.
	FailurePolicy string
	// LockTimeout bounds the wait for the mirror lock. Zero tries once.
	LockTimeout time.Duration
}

// Result is the outcome for one version.
type Result struct {
	Version string
	Commit  string
	Path    string
	Entries int
	Err     error
}

// Report summarizes a run.
type Report struct {
	RunID string
	// Created is true when the run had to create the mirror.
	Created bool
	Results []Result
}

// Failed returns the versions that did not produce a catalog.
func (r *Report) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Version)
		}
	}
	return out
}

// Service runs extractions against one mirror.
type Service struct {
	mirror  *mirror.Mirror
	opts    Options
	logger  *logging.Logger
	tracer  trace.Tracer
	inst    *telemetry.Instruments
	metrics *metrics.Metrics
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer sets the tracer for run and per-version spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithInstruments sets the OpenTelemetry instruments.
func WithInstruments(i *telemetry.Instruments) Option {
	return func(s *Service) { s.inst = i }
}

// WithMetrics sets the Prometheus metrics updated per version.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service.
func NewService(m *mirror.Mirror, opts Options, options ...Option) *Service {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.PolicyFailFast
	}
	s := &Service{
		mirror: m,
		opts:   opts,
		logger: logging.NewNop(),
		tracer: noop.NewTracerProvider().Tracer(telemetry.ScopeName),
		newID:  uuid.NewString,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// LockPath returns the lock file guarding the mirror.
func (s *Service) LockPath() string {
	return filepath.Clean(s.mirror.Dir()) + ".lock"
}

// Run extracts every version in order.
//
// The mirror is locked for the whole run and created first if needed; a
// failure there aborts the run regardless of policy. Under fail-fast the
// first failed version ends the run. Under fail-soft the remaining versions
// are still processed and all failures are returned joined. A failed version
// never leaves a catalog behind from this run.
func (s *Service) Run(ctx context.Context, versions []string) (*Report, error) {
	report := &Report{RunID: s.newID()}
	if len(versions) == 0 {
		return report, mirror.ErrNoVersions
	}

	ctx = logging.WithLogger(logging.WithRunID(ctx, report.RunID), s.logger)
	ctx, span := s.tracer.Start(ctx, "extractor.Run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.StringSlice("versions", versions),
		attribute.String("mirror.backend", s.mirror.Backend()),
		attribute.String("failure_policy", s.opts.FailurePolicy),
	))
	defer span.End()

	err := s.run(ctx, versions, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}

func (s *Service) run(ctx context.Context, versions []string, report *Report) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	created, err := s.mirror.Ensure(ctx, versions)
	if err != nil {
		return err
	}
	report.Created = created
	if created {
		s.logger.Info(ctx, "mirror created",
			zap.String("dir", s.mirror.Dir()),
			logging.URL("url", s.opts.RepoURL),
			zap.String("backend", s.mirror.Backend()))
	} else {
		s.logger.Debug(ctx, "reusing mirror", zap.String("dir", s.mirror.Dir()))
	}

	var errs []error
	for _, v := range versions {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		res := s.extract(ctx, v)
		report.Results = append(report.Results, res)
		if res.Err == nil {
			continue
		}

		err := fmt.Errorf("version %s: %w", v, res.Err)
		if s.opts.FailurePolicy != config.PolicyFailSoft {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// extract produces the catalog for one version.
func (s *Service) extract(ctx context.Context, version string) Result {
	ctx = logging.WithVersion(ctx, version)
	ctx, span := s.tracer.Start(ctx, "extractor.version", trace.WithAttributes(
		attribute.String("version", version),
	))
	defer span.End()

	res := Result{Version: version}
	res.Commit, res.Path, res.Entries, res.Err = s.extractVersion(ctx, version)

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		s.metrics.ObserveFailure(version)
		s.logger.Error(ctx, "version failed", zap.Error(res.Err))
		return res
	}

	span.SetAttributes(
		attribute.String("commit", res.Commit),
		attribute.Int("entries", res.Entries),
	)
	s.inst.RecordCatalog(ctx, version, res.Entries)
	s.metrics.ObserveSuccess(version, res.Entries)
	s.logger.Info(ctx, "catalog written",
		zap.String("path", res.Path),
		zap.String("commit", res.Commit),
		zap.Int("entries", res.Entries))
	return res
}

func (s *Service) extractVersion(ctx context.Context, version string) (string, string, int, error) {
	commit, err := s.mirror.Checkout(ctx, version)
	if err != nil {
		return "", "", 0, err
	}
	s.logger.Debug(ctx, "checked out", zap.String("commit", commit))

	entries, err := catalog.Enumerate(s.mirror.ContentDir(), s.opts.Filter)
	if err != nil {
		return commit, "", 0, err
	}

	c := &catalog.Catalog{
		Version: version,
		RepoURL: s.opts.RepoURL,
		Subdir:  s.opts.Subdir,
		Entries: entries,
	}
	path, err := catalog.Write(s.opts.OutputDir, s.opts.FilePrefix, c)
	if err != nil {
		return commit, "", 0, err
	}
	return commit, path, len(entries), nil
}

// lock takes the mirror lock, waiting up to LockTimeout.
func (s *Service) lock(ctx context.Context) (func(), error) {
	path := s.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fileLock := flock.New(path)
	var locked bool
	var err error
	if s.opts.LockTimeout > 0 {
		lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
		defer cancel()
		locked, err = fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	} else {
		locked, err = fileLock.TryLock()
	}

	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquiring mirror lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s (waited %v)", ErrMirrorBusy, path, s.opts.LockTimeout)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.Warn(ctx, "releasing mirror lock", zap.String("path", path), zap.Error(err))
		}
	}, nil
}
