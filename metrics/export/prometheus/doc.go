// Package prometheus exports goPortal client metrics to Prometheus.
//
// [NewPrometheusExporter] wraps a [goPortal.Client]. Counters are named
// goportal_*_total and the call latency histogram is
// goportal_call_latency_seconds. The exporter keeps a private registry for
// [PrometheusExporter.Handler]; callers that already run a registry register
// [PrometheusExporter.Collector] instead.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate client state.
package prometheus
