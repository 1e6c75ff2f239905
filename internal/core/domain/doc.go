// Package domain defines the core domain models for corslight.
//
// This package contains the types shared by the client, the dispatcher and
// the storage engine:
//
//   - message.go: Request and Response
//   - verb.go: the closed set of protocol verbs
//   - ttl.go: expiry policies requested by a store call
//   - record.go: persisted records and their expiry evaluation
//   - manifest.go: the key -> allowed hostnames access table
//   - errors.go: coded errors and their wire messages
//
// Domain models are independent of the transport and of the key-value backend.
package domain
