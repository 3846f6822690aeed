// Package otel exposes authcore counters and histograms as OpenTelemetry
// observable instruments.
//
// One callback reads [authcore.Engine.MetricsSnapshot] per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
