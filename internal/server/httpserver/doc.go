// Package httpserver provides the admin HTTP server of corslight-server.
//
// Endpoints:
//
//	GET /healthz           liveness
//	GET /readyz            readiness (frame listener bound, storage open)
//	GET /metrics           Prometheus exposition
//	GET /admin/v1/status   build, uptime, connection and manifest summary
//
// The admin server is meant for operators and scrapers, not for embedding
// documents; an optional IP allowlist restricts every endpoint except
// /healthz.
package httpserver
