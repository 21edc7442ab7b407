// Package prometheus provides Prometheus collectors for secretroom metrics.
//
// [NewPrometheusExporter] accepts a [secretroom.Engine] and exposes an [http.Handler]
// that renders all secretroom counters and histograms in Prometheus text exposition
// format. Counter names are prefixed secretroom_*_total; the single histogram is
// secretroom_solve_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
