// Package memory provides an in-process key-value store.
//
// Values are copied on the way in and on the way out, so callers may reuse
// their buffers. Contents are lost when the process exits, which makes the
// store a good fit for tests and for deployments where records only need to
// live as long as the server.
package memory
