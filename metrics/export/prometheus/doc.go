// Package prometheus exposes authflow engine metrics as a
// prometheus.Collector.
//
// Counters are authflow_*_total, the exchange latency histogram is
// authflow_exchange_latency_seconds and the in-memory session count is the
// authflow_sessions gauge. Values are read from a snapshot on every scrape.
//
// # What this package must NOT do
//
//   - Register into the default Prometheus registry. Callers pass a Registerer
//     or mount [PrometheusExporter.Handler].
//   - Mutate engine state.
package prometheus
