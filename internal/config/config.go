// Package config provides configuration loading for classcatalog.
//
// Configuration is assembled from defaults, an optional YAML or TOML file and
// CLASSCATALOG_* environment variables. With no file and no environment the
// defaults reproduce the classic godot class list extraction.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/classcatalog/internal/catalog"
	"github.com/fyrsmithlabs/classcatalog/pkg/git"
)

// Backend names accepted by mirror.backend.
const (
	BackendExec  = "exec"
	BackendGoGit = "go-git"
)

// Failure policies accepted by run.failure_policy.
const (
	PolicyFailFast = "fail-fast"
	PolicyFailSoft = "fail-soft"
)

// Config holds the complete classcatalog configuration.
type Config struct {
	Source    SourceConfig    `koanf:"source"`
	Mirror    MirrorConfig    `koanf:"mirror"`
	Output    OutputConfig    `koanf:"output"`
	Run       RunConfig       `koanf:"run"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// SourceConfig describes the remote repository and what to extract from it.
type SourceConfig struct {
	URL           string   `koanf:"url"`
	Versions      []string `koanf:"versions"`
	Subdir        string   `koanf:"subdir"`
	Suffix        string   `koanf:"suffix"`
	ExcludePrefix string   `koanf:"exclude_prefix"` // set to "" to keep every name
	DocsURL       string   `koanf:"docs_url"`       // Base URL used by the links command
}

// MirrorConfig holds local mirror settings.
type MirrorConfig struct {
	Dir            string   `koanf:"dir"`
	Backend        string   `koanf:"backend"`
	Depth          int      `koanf:"depth"` // negative fetches full history
	GitBinary      string   `koanf:"git_binary"`
	CommandTimeout Duration `koanf:"command_timeout"`
	LockTimeout    Duration `koanf:"lock_timeout"`
}

// OutputConfig controls where catalog files are written.
type OutputConfig struct {
	Dir        string `koanf:"dir"`
	FilePrefix string `koanf:"file_prefix"`
}

// RunConfig controls per-version failure handling.
type RunConfig struct {
	FailurePolicy string `koanf:"failure_policy"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // grpc or http/protobuf
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"` // empty disables
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg := seeded()
	applyDefaults(cfg)
	return cfg
}

// DefaultExcludePrefix marks names left out of catalogs.
const DefaultExcludePrefix = "@"

// seeded returns the values loading starts from. They are fields for which an
// explicit empty value is meaningful, so applyDefaults cannot fill them in.
func seeded() *Config {
	return &Config{
		Source: SourceConfig{ExcludePrefix: DefaultExcludePrefix},
	}
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Source.URL == "" {
		cfg.Source.URL = "https://github.com/godotengine/godot"
	}
	if len(cfg.Source.Versions) == 0 {
		cfg.Source.Versions = []string{"3.2", "3.3", "3.4", "3.5"}
	}
	if cfg.Source.Subdir == "" {
		cfg.Source.Subdir = "doc/classes"
	}
	if cfg.Source.Suffix == "" {
		cfg.Source.Suffix = ".xml"
	}
	if cfg.Source.DocsURL == "" {
		cfg.Source.DocsURL = "https://docs.godotengine.org/en"
	}

	if cfg.Mirror.Dir == "" {
		cfg.Mirror.Dir = "godot"
	}
	if cfg.Mirror.Backend == "" {
		cfg.Mirror.Backend = BackendExec
	}
	if cfg.Mirror.Depth == 0 {
		cfg.Mirror.Depth = 1
	}
	if cfg.Mirror.GitBinary == "" {
		cfg.Mirror.GitBinary = "git"
	}
	if cfg.Mirror.CommandTimeout == 0 {
		cfg.Mirror.CommandTimeout = Duration(10 * time.Minute)
	}
	if cfg.Mirror.LockTimeout == 0 {
		cfg.Mirror.LockTimeout = Duration(5 * time.Second)
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.FilePrefix == "" {
		cfg.Output.FilePrefix = "godot_classes"
	}

	if cfg.Run.FailurePolicy == "" {
		cfg.Run.FailurePolicy = PolicyFailFast
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "classcatalog"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Source.validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Mirror.validate(); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}

	if c.Output.Dir == "" {
		return errors.New("output: dir is required")
	}
	if c.Output.FilePrefix == "" || strings.ContainsAny(c.Output.FilePrefix, `/\`) {
		return fmt.Errorf("output: invalid file_prefix %q", c.Output.FilePrefix)
	}
	files := make(map[string]string, len(c.Source.Versions))
	for _, v := range c.Source.Versions {
		name := catalog.FileName(c.Output.FilePrefix, v)
		if other, ok := files[name]; ok {
			return fmt.Errorf("source: versions %q and %q both write %s", other, v, name)
		}
		files[name] = v
	}

	switch c.Run.FailurePolicy {
	case PolicyFailFast, PolicyFailSoft:
	default:
		return fmt.Errorf("run: failure_policy must be %q or %q, got %q",
			PolicyFailFast, PolicyFailSoft, c.Run.FailurePolicy)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging: format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry: endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry: protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
	}

	return nil
}

func (s *SourceConfig) validate() error {
	if s.URL == "" {
		return errors.New("url is required")
	}
	if _, err := url.Parse(s.URL); err != nil && !filepath.IsAbs(s.URL) {
		return fmt.Errorf("invalid url: %w", err)
	}
	if len(s.Versions) == 0 {
		return errors.New("at least one version is required")
	}
	seen := make(map[string]bool, len(s.Versions))
	for _, v := range s.Versions {
		if err := git.ValidateRef(v); err != nil {
			return err
		}
		if seen[v] {
			return fmt.Errorf("duplicate version %q", v)
		}
		seen[v] = true
	}
	if s.Subdir == "" {
		return errors.New("subdir is required")
	}
	clean := path.Clean(filepath.ToSlash(s.Subdir))
	if path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("subdir must be a relative path inside the repository, got %q", s.Subdir)
	}
	if s.Suffix == "" {
		return errors.New("suffix is required")
	}
	return nil
}

func (m *MirrorConfig) validate() error {
	if m.Dir == "" {
		return errors.New("dir is required")
	}
	if m.Backend != BackendExec && m.Backend != BackendGoGit {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendExec, BackendGoGit, m.Backend)
	}
	if m.CommandTimeout.Duration() <= 0 {
		return errors.New("command_timeout must be positive")
	}
	if m.LockTimeout.Duration() <= 0 {
		return errors.New("lock_timeout must be positive")
	}
	return nil
}

// FetchDepth returns the depth handed to git, where 0 means full history.
func (m *MirrorConfig) FetchDepth() int {
	if m.Depth < 0 {
		return 0
	}
	return m.Depth
}

// SubdirSlash returns the source subdirectory in slash form, as git expects it.
func (s *SourceConfig) SubdirSlash() string {
	return path.Clean(filepath.ToSlash(s.Subdir))
}
