package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "CLASSCATALOG_"

	// DefaultFileName is looked up in the working directory when no path is given.
	DefaultFileName = "classcatalog.yaml"
)

// Load loads configuration from a YAML or TOML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (CLASSCATALOG_SOURCE_URL, CLASSCATALOG_MIRROR_DIR, etc.)
//  2. Config file (configPath, or ./classcatalog.yaml when it exists)
//  3. Hardcoded defaults
//
// An explicit configPath that does not exist is an error; the implicit
// default file is optional. The parser is picked by extension: .toml uses
// TOML, anything else YAML.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the remainder split on the first underscore:
//
//	CLASSCATALOG_SOURCE_VERSIONS=3.4,3.5 -> source.versions
//	CLASSCATALOG_MIRROR_COMMAND_TIMEOUT  -> mirror.command_timeout
//	CLASSCATALOG_RUN_FAILURE_POLICY      -> run.failure_policy
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultFileName
	}

	content, err := readConfigFile(configPath)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), parserFor(configPath)); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No default file; defaults and env only.
	default:
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := seeded()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps CLASSCATALOG_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// envValue maps the key with envKey and splits comma separated list values.
func envValue(key, value string) (string, interface{}) {
	k := envKey(key)
	if k == "source.versions" {
		var versions []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				versions = append(versions, v)
			}
		}
		return k, versions
	}
	return k, value
}

// readConfigFile reads a config file after checking its size through the
// already-opened descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return TOMLParser()
	}
	return yaml.Parser()
}
