// internal/logging/config.go
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level
	Format string            // "json" or "console"
	Output io.Writer         // defaults to stderr; stdout carries command output
	Fields map[string]string // constant fields added to every entry
	Caller bool
}

// NewDefaultConfig returns config with CLI-friendly defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "console",
		Output: os.Stderr,
		Fields: map[string]string{
			"service": "classcatalog",
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
