// Package otel bridges sessionkit metrics into an OpenTelemetry meter.
//
// The exporter is pull-based. It registers a single observable callback on
// the provided meter and, on every collection cycle, reads a consistent
// snapshot from the session engine and publishes counters, cumulative
// histogram buckets, and the audit backpressure counter.
//
// The exporter never mutates engine state and holds no locks across
// collection. Call Close to unregister the callback when the meter or the
// engine is being torn down.
package otel
