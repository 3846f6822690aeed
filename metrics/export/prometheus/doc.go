// Package prometheus renders authcore metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads [authcore.Engine.MetricsSnapshot] on every
// scrape. Counter names are prefixed authcore_*_total; histograms are
// authcore_validate_latency_seconds and authcore_registration_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
