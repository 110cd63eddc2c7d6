package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/classcatalog/internal/catalog"
	"github.com/fyrsmithlabs/classcatalog/internal/config"
	"github.com/fyrsmithlabs/classcatalog/internal/extractor"
	"github.com/fyrsmithlabs/classcatalog/internal/logging"
	"github.com/fyrsmithlabs/classcatalog/internal/metrics"
	"github.com/fyrsmithlabs/classcatalog/internal/telemetry"
	"github.com/fyrsmithlabs/classcatalog/pkg/git"
	"github.com/fyrsmithlabs/classcatalog/pkg/mirror"
)

// generateOptions holds flags that override configuration for a run.
type generateOptions struct {
	versions      []string
	mirrorDir     string
	outputDir     string
	backend       string
	failurePolicy string
}

func (o *generateOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.versions, "version", nil, "Version (branch or tag) to extract; repeatable")
	cmd.Flags().StringVar(&o.mirrorDir, "mirror-dir", "", "Directory of the local mirror")
	cmd.Flags().StringVar(&o.outputDir, "output-dir", "", "Directory catalog files are written to")
	cmd.Flags().StringVar(&o.backend, "backend", "", "Mirror backend: exec or go-git")
	cmd.Flags().StringVar(&o.failurePolicy, "failure-policy", "", "fail-fast or fail-soft")
}

// apply copies flags the user set onto cfg.
func (o *generateOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("version") {
		cfg.Source.Versions = o.versions
	}
	if flags.Changed("mirror-dir") {
		cfg.Mirror.Dir = o.mirrorDir
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = o.outputDir
	}
	if flags.Changed("backend") {
		cfg.Mirror.Backend = o.backend
	}
	if flags.Changed("failure-policy") {
		cfg.Run.FailurePolicy = o.failurePolicy
	}
}

func newGenerateCmd(ro *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Update the mirror and write one catalog per version",
		Long: `Update the mirror and write one catalog per version.

The mirror is created on first use and reused afterwards. Versions are
processed in order; with --failure-policy fail-soft a failed version is
reported and skipped instead of ending the run.

Examples:
  classcatalog generate
  classcatalog generate --version 3.4 --version 3.5 --output-dir gen/
  classcatalog generate --backend go-git`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, ro, opts)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runGenerate(cmd *cobra.Command, ro *rootOptions, opts *generateOptions) error {
	cfg, err := loadConfig(ro)
	if err != nil {
		return err
	}
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr(), tel)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return err
	}
	defer func() {
		_ = logger.Sync()
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
		}
	}()
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	inst, err := telemetry.NewInstruments(tel.Meter(telemetry.ScopeName))
	if err != nil {
		return err
	}
	m := metrics.New()

	mir := mirror.New(mirror.Config{
		Dir:    cfg.Mirror.Dir,
		URL:    cfg.Source.URL,
		Subdir: cfg.Source.SubdirSlash(),
		Depth:  cfg.Mirror.FetchDepth(),
	}, newBackend(cfg), mirror.WithObserver(inst.RecordGitCommand))

	svc := extractor.NewService(mir, extractor.Options{
		RepoURL: cfg.Source.URL,
		Subdir:  cfg.Source.SubdirSlash(),
		Filter: catalog.Filter{
			Suffix:        cfg.Source.Suffix,
			ExcludePrefix: cfg.Source.ExcludePrefix,
		},
		OutputDir:     cfg.Output.Dir,
		FilePrefix:    cfg.Output.FilePrefix,
		FailurePolicy: cfg.Run.FailurePolicy,
		LockTimeout:   cfg.Mirror.LockTimeout.Duration(),
	},
		extractor.WithLogger(logger),
		extractor.WithTracer(tel.Tracer(telemetry.ScopeName)),
		extractor.WithInstruments(inst),
		extractor.WithMetrics(m),
	)

	report, runErr := svc.Run(ctx, cfg.Source.Versions)

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn(ctx, "metrics textfile not written", zap.Error(err))
		}
	}

	if err := printReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	return runErr
}

// newBackend selects the mirror backend named in cfg. Both backends apply
// mirror.command_timeout to each git operation.
func newBackend(cfg *config.Config) mirror.Backend {
	timeout := cfg.Mirror.CommandTimeout.Duration()
	if cfg.Mirror.Backend == config.BackendGoGit {
		return mirror.NewGoGitBackend(mirror.WithFetchTimeout(timeout))
	}
	runner := git.NewExecRunner(cfg.Mirror.GitBinary,
		git.WithTimeout(timeout),
		git.WithObserver(func(ctx context.Context, args []string, elapsed time.Duration, err error) {
			logging.FromContext(ctx).Trace(ctx, "git",
				zap.Strings("args", args),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		}),
	)
	return mirror.NewExecBackend(runner)
}

// newLogger builds the stderr logger, bridged to OpenTelemetry when tel
// exports logs.
func newLogger(cfg config.LoggingConfig, out io.Writer, tel *telemetry.Telemetry) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	lc := logging.NewDefaultConfig()
	lc.Level = level
	lc.Format = cfg.Format
	lc.Output = out
	lc.Fields["build"] = version
	return logging.NewLogger(lc, tel.LoggerProvider())
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.Protocol = cfg.Telemetry.Protocol
	tc.Insecure = cfg.Telemetry.Insecure
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	return tc
}

func printReport(w io.Writer, report *extractor.Report) error {
	if report == nil {
		return nil
	}
	for _, res := range report.Results {
		var err error
		if res.Err != nil {
			_, err = fmt.Fprintf(w, "%s\tFAILED\n", res.Version)
		} else {
			_, err = fmt.Fprintf(w, "%s\t%d entries\t%s\n", res.Version, res.Entries, res.Path)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
