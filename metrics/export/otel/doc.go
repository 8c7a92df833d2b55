// Package otel publishes authflow engine metrics through an OpenTelemetry
// Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and two gauges per latency histogram: <name>_bucket, whose points carry an
// "le" attribute with the cumulative count up to that bound, and
// <name>_count. A further gauge reports the in-memory session count. One
// callback reads [authflow.Engine.MetricsSnapshot] per collection. The
// caller owns the MeterProvider.
package otel
