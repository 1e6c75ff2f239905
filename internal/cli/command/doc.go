// Package command provides the corslight-cli command definitions.
//
// The CLI embeds a storage document served by corslight-server and drives
// it the way a web page would:
//
//   - root.go: application, global flags and client construction
//   - kv.go: store, fetch and remove
//   - version.go: build information
//
// Every command opens one client, waits for its result and exits.
package command
