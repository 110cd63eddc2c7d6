// internal/logging/otel.go
package logging

import (
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// instrumentationName names the OTel logger the bridge emits through.
const instrumentationName = "github.com/fyrsmithlabs/classcatalog"

// newCore writes to cfg.Output and, when otelProvider is set, also to
// OpenTelemetry at the same level.
func newCore(cfg *Config, otelProvider log.LoggerProvider, out zapcore.WriteSyncer) (zapcore.Core, error) {
	core := zapcore.NewCore(newEncoder(cfg.Format), out, cfg.Level)
	if otelProvider == nil {
		return core, nil
	}

	otelCore, err := zapcore.NewIncreaseLevelCore(
		otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(otelProvider)),
		cfg.Level,
	)
	if err != nil {
		return nil, fmt.Errorf("otel core: %w", err)
	}
	return zapcore.NewTee(core, otelCore), nil
}
