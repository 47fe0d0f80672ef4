// Package prometheus exposes goGuard engine metrics as a Prometheus collector.
//
// [NewCollector] reads [goGuard.Engine.MetricsSnapshot] on every scrape and emits one
// goguard_*_total counter per engine counter plus the goguard_tick_latency_seconds
// histogram. [NewExporter] wraps the collector in a private registry and serves it.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
