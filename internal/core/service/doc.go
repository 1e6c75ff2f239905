// Package service provides the domain services behind a corslight
// dispatcher.
//
// This package contains:
//
//   - AccessControl: checks a (hostname, key) pair against a Manifest
//   - StorageEngine: store, fetch and remove with TTL and session expiry
//   - RateLimiterRegistry: per-origin token buckets
//
// Every failure a peer may see is a domain.DomainError whose Message is the
// wire string. Store failures are wrapped in domain.ErrStorage so that
// backend details stay in the logs.
package service
