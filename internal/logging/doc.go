// Package logging provides structured logging for classcatalog.
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug) for raw git output
//   - Context field injection (trace_id, span_id, run.id, version)
//   - URL helper that keeps credentials out of log lines
//   - Optional OpenTelemetry export through the otelzap bridge
//
// Entries go to stderr so stdout stays free for command output such as
// the links table.
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithVersion(ctx, "3.2")
//	logger.Info(ctx, "catalog written", zap.Int("entries", n))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "catalog written", zap.Int("entries", 2))
//	tl.AssertLogged(t, zapcore.InfoLevel, "catalog written")
//	tl.AssertField(t, "catalog written", "entries", 2)
package logging
