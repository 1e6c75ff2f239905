// Package main provides the entry point for corslight-server.
//
// The server hosts the storage document of one origin. Each connection
// embeds that document: the peer announces its page origin, the server
// answers with a ready message and then serves store, fetch and remove
// requests against the manifest.
//
// Besides the frame listener the server runs:
//
//   - an admin HTTP listener with /healthz, /readyz, /metrics and
//     /admin/v1/status
//   - a background sweep that deletes expired records
//   - a config file watcher that reloads the manifest and log level
//
// Usage:
//
//	corslight-server [flags]
//	corslight-server --config /etc/corslight/server.yaml
package main
