package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/classcatalog/internal/catalog"
	"github.com/fyrsmithlabs/classcatalog/internal/config"
	"github.com/fyrsmithlabs/classcatalog/internal/logging"
	"github.com/fyrsmithlabs/classcatalog/internal/metrics"
	"github.com/fyrsmithlabs/classcatalog/internal/telemetry"
	"github.com/fyrsmithlabs/classcatalog/pkg/git"
	"github.com/fyrsmithlabs/classcatalog/pkg/mirror"
)

// fakeBackend lays out the subdirectory contents of each version directly.
type fakeBackend struct {
	trees    map[string][]string
	fail     map[string]error
	creates  int
	checkout []string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Create(_ context.Context, cfg mirror.Config, _ []string) error {
	b.creates++
	return os.MkdirAll(filepath.Join(cfg.Dir, ".git"), 0o755)
}

func (b *fakeBackend) Checkout(ctx context.Context, cfg mirror.Config, version string) (string, error) {
	b.checkout = append(b.checkout, version)
	logging.FromContext(ctx).Debug(ctx, "fake checkout")
	if err, ok := b.fail[version]; ok {
		return "", err
	}
	files, ok := b.trees[version]
	if !ok {
		return "", &git.CommandError{Args: []string{"fetch", "origin", version}, ExitCode: 128, Err: errors.New("exit status 128")}
	}

	dir := filepath.Join(cfg.Dir, filepath.FromSlash(cfg.Subdir))
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if files == nil {
		return fmt.Sprintf("%040d", len(b.checkout)), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%040d", len(b.checkout)), nil
}

type fixture struct {
	backend *fakeBackend
	mirror  *mirror.Mirror
	out     string
	opts    Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	b := &fakeBackend{
		trees: map[string][]string{
			"3.2": {"Node.xml", "@GlobalScope.xml", "Node2D.xml", "readme.md"},
			"3.3": {"Sprite.xml", "Node.xml", "@GDScript.xml"},
			"3.4": {},
		},
		fail: map[string]error{},
	}
	m := mirror.New(mirror.Config{
		Dir:    filepath.Join(root, "godot"),
		URL:    "https://github.com/godotengine/godot",
		Subdir: "doc/classes",
		Depth:  1,
	}, b)

	return &fixture{
		backend: b,
		mirror:  m,
		out:     filepath.Join(root, "out"),
		opts: Options{
			RepoURL:    "https://github.com/godotengine/godot",
			Subdir:     "doc/classes",
			Filter:     catalog.Filter{Suffix: ".xml", ExcludePrefix: "@"},
			FilePrefix: "godot_classes",
		},
	}
}

func (f *fixture) service(opts ...Option) *Service {
	o := f.opts
	o.OutputDir = f.out
	return NewService(f.mirror, o, opts...)
}

func (f *fixture) read(t *testing.T, version string) []string {
	t.Helper()
	file, err := catalog.Read(filepath.Join(f.out, catalog.FileName("godot_classes", version)))
	require.NoError(t, err)
	return file.Entries
}

func TestRun_LoggerReachesBackendThroughContext(t *testing.T) {
	f := newFixture(t)
	tl := logging.NewTestLogger()

	report, err := f.service(WithLogger(tl.Logger)).Run(context.Background(), []string{"3.2"})
	require.NoError(t, err)

	tl.AssertLogged(t, zapcore.DebugLevel, "fake checkout")
	tl.AssertField(t, "fake checkout", "version", "3.2")
	tl.AssertField(t, "fake checkout", "run.id", report.RunID)
}

func TestRun_WritesOneCatalogPerVersion(t *testing.T) {
	f := newFixture(t)
	tl := logging.NewTestLogger()

	report, err := f.service(WithLogger(tl.Logger)).Run(context.Background(), []string{"3.2", "3.3"})
	require.NoError(t, err)

	assert.True(t, report.Created)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 2)
	assert.Empty(t, report.Failed())

	assert.Equal(t, []string{"Node", "Node2D"}, f.read(t, "3.2"))
	assert.Equal(t, []string{"Node", "Sprite"}, f.read(t, "3.3"))
	assert.Equal(t, 2, report.Results[0].Entries)
	assert.Equal(t, filepath.Join(f.out, "godot_classes-3.2.txt"), report.Results[0].Path)

	tl.AssertLogged(t, zapcore.InfoLevel, "mirror created")
	tl.AssertField(t, "catalog written", "version", "3.3")
	tl.AssertField(t, "catalog written", "run.id", report.RunID)
}

func TestRun_EmptySubdirectory(t *testing.T) {
	f := newFixture(t)

	_, err := f.service().Run(context.Background(), []string{"3.4"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.out, "godot_classes-3.4.txt"))
	require.NoError(t, err)
	assert.Equal(t, catalog.HeaderPrefix+"https://github.com/godotengine/godot/tree/3.4/doc/classes\n[\n]", string(data))
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	s := f.service()

	_, err := s.Run(context.Background(), []string{"3.2"})
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(f.out, "godot_classes-3.2.txt"))
	require.NoError(t, err)

	report, err := s.Run(context.Background(), []string{"3.2"})
	require.NoError(t, err)
	assert.False(t, report.Created)
	assert.Equal(t, 1, f.backend.creates)

	second, err := os.ReadFile(filepath.Join(f.out, "godot_classes-3.2.txt"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_FailFastStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	f.opts.FailurePolicy = config.PolicyFailFast

	report, err := f.service().Run(context.Background(), []string{"3.2", "9.9", "3.3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrCommandFailed)
	assert.Contains(t, err.Error(), "version 9.9")

	assert.Equal(t, []string{"3.2", "9.9"}, f.backend.checkout)
	assert.Equal(t, []string{"9.9"}, report.Failed())
	assert.FileExists(t, filepath.Join(f.out, "godot_classes-3.2.txt"))
	assert.NoFileExists(t, filepath.Join(f.out, "godot_classes-3.3.txt"))
}

func TestRun_FailSoftContinues(t *testing.T) {
	f := newFixture(t)
	f.opts.FailurePolicy = config.PolicyFailSoft
	f.backend.fail["3.3"] = errors.New("network unreachable")
	tl := logging.NewTestLogger()
	m := metrics.New()

	report, err := f.service(WithLogger(tl.Logger), WithMetrics(m)).Run(context.Background(), []string{"3.3", "9.9", "3.2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 3.3")
	assert.Contains(t, err.Error(), "version 9.9")
	assert.ErrorIs(t, err, git.ErrCommandFailed)

	assert.ElementsMatch(t, []string{"3.3", "9.9"}, report.Failed())
	assert.NoFileExists(t, filepath.Join(f.out, "godot_classes-3.3.txt"))
	assert.NoFileExists(t, filepath.Join(f.out, "godot_classes-9.9.txt"))
	assert.Equal(t, []string{"Node", "Node2D"}, f.read(t, "3.2"))

	tl.AssertLogged(t, zapcore.ErrorLevel, "version failed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures.WithLabelValues("3.3")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Entries.WithLabelValues("3.2")))
}

func TestRun_MissingSubdirectoryFailsVersion(t *testing.T) {
	f := newFixture(t)
	f.backend.trees["3.5"] = nil

	report, err := f.service().Run(context.Background(), []string{"3.5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrSubdirNotFound)
	assert.NotEmpty(t, report.Results[0].Commit)
}

func TestRun_MirrorCreationFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.opts.FailurePolicy = config.PolicyFailSoft

	_, err := f.service().Run(context.Background(), []string{"3.2", "bad..ref"})
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrInvalidRef)
	assert.Empty(t, f.backend.checkout)
}

func TestRun_NoVersions(t *testing.T) {
	_, err := newFixture(t).service().Run(context.Background(), nil)
	assert.ErrorIs(t, err, mirror.ErrNoVersions)
}

func TestRun_MirrorBusy(t *testing.T) {
	f := newFixture(t)
	f.opts.LockTimeout = 200 * time.Millisecond
	s := f.service()

	held := flock.New(s.LockPath())
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = s.Run(context.Background(), []string{"3.2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMirrorBusy)
	assert.Empty(t, f.backend.checkout)

	require.NoError(t, held.Unlock())
	_, err = s.Run(context.Background(), []string{"3.2"})
	assert.NoError(t, err)
}

func TestRun_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service().Run(ctx, []string{"3.2"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_RecordsTelemetry(t *testing.T) {
	f := newFixture(t)
	tt := telemetry.NewTestTelemetry()
	inst, err := telemetry.NewInstruments(tt.Meter(telemetry.ScopeName))
	require.NoError(t, err)

	report, err := f.service(
		WithTracer(tt.Tracer(telemetry.ScopeName)),
		WithInstruments(inst),
	).Run(context.Background(), []string{"3.2"})
	require.NoError(t, err)

	tt.AssertSpanExists(t, "extractor.Run")
	tt.AssertSpanAttribute(t, "extractor.Run", "run.id", report.RunID)
	tt.AssertSpanAttribute(t, "extractor.version", "version", "3.2")
	tt.AssertSpanAttribute(t, "extractor.version", "entries", int64(2))

	_, ok := tt.Metric(t, "classcatalog.catalogs.written")
	assert.True(t, ok)
}

func TestNewService_DefaultsToFailFast(t *testing.T) {
	s := NewService(newFixture(t).mirror, Options{})
	assert.Equal(t, config.PolicyFailFast, s.opts.FailurePolicy)
	assert.Equal(t, filepath.Clean(s.mirror.Dir())+".lock", s.LockPath())
}
