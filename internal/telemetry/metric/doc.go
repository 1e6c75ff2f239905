// Package metric provides Prometheus metrics for corslight.
//
// A Registry owns a private prometheus.Registry with Go runtime and process
// collectors plus the protocol metrics:
//
//   - requests answered by dispatchers, by verb and result
//   - dispatcher handling latency
//   - rejected messages (bad requests, bad actions, rate limiting)
//   - record evictions by reason
//   - client round trips, open requests and client-side errors
//
// Every recording method is safe to call on a nil *Registry, so components
// can take an optional registry without guarding each call.
//
// Metrics are exposed at /metrics on the admin listener.
package metric
