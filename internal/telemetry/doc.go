// Package telemetry wires OpenTelemetry tracing and metrics.
//
// Providers export over OTLP (grpc or http/protobuf) when enabled and fall
// back to the global no-op providers otherwise, so instrumented code never
// branches on whether telemetry is on.
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer(telemetry.ScopeName)
//	inst, err := telemetry.NewInstruments(tel.Meter(telemetry.ScopeName))
//
// Recorded instruments:
//
//	classcatalog.catalogs.written       counter, per version
//	classcatalog.entries                gauge, per version
//	classcatalog.git.command.duration   histogram, per git operation
//
// Use NewTestTelemetry in tests to capture spans and metrics in memory.
package telemetry
