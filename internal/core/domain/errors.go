// Package domain defines the core domain models for corslight.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a protocol or storage error with a structured error code.
//
// Message is the exact string carried in the "error" field of a wire response,
// so it must stay stable across releases.
type DomainError struct {
	Code    string // Error code (e.g., "CL-ACL-4040")
	Message string // Wire message
	Details string // Optional additional details, never sent on the wire
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// WireMessage returns the string to place in a response's "error" field.
// Errors that are not DomainErrors are reported as a generic storage error
// so that internal details never reach the peer.
func WireMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ErrStorage.Message
}

// ============================================================================
// Channel Errors (CHAN)
// ============================================================================

var (
	// ErrChannelUnavailable indicates the transport capability is missing or failed.
	ErrChannelUnavailable = NewDomainError("CL-CHAN-5030", "Channel unavailable")

	// ErrOriginMismatch indicates an inbound message came from an unexpected origin.
	ErrOriginMismatch = NewDomainError("CL-CHAN-4030", "Origin mismatch")
)

// ============================================================================
// Protocol Errors (PROTO)
// ============================================================================

var (
	// ErrMalformedPayload indicates a payload could not be parsed.
	ErrMalformedPayload = NewDomainError("CL-PROTO-4000", "Malformed payload")

	// ErrBadRequest is answered, without an id, to unparseable requests.
	ErrBadRequest = NewDomainError("CL-PROTO-4001", "Bad request")

	// ErrBadAction is answered, with the request id, to unknown verbs.
	ErrBadAction = NewDomainError("CL-PROTO-4002", "Bad action")

	// ErrUnsolicitedResponse indicates a response id has no open request.
	ErrUnsolicitedResponse = NewDomainError("CL-PROTO-4040", "Unsolicited response")
)

// ============================================================================
// Access Control Errors (ACL)
// ============================================================================

var (
	// ErrKeyNotSpecified indicates the request carries no key.
	ErrKeyNotSpecified = NewDomainError("CL-ACL-4000", "Key not specified")

	// ErrInvalidKey indicates the key is not listed in the manifest.
	ErrInvalidKey = NewDomainError("CL-ACL-4040", "Invalid key")

	// ErrInvalidOrigin indicates the origin is not allowed for the key.
	ErrInvalidOrigin = NewDomainError("CL-ACL-4030", "Invalid origin")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrInvalidTTL indicates the TTL value is not recognized.
	ErrInvalidTTL = NewDomainError("CL-STOR-4000", "Invalid TTL")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrConfiguration indicates an unsupported construction context.
	ErrConfiguration = NewDomainError("CL-SYS-5000", "Configuration error")

	// ErrStorage indicates a key-value store failure.
	ErrStorage = NewDomainError("CL-SYS-5001", "Storage error")

	// ErrRateLimited indicates too many requests from one origin.
	ErrRateLimited = NewDomainError("CL-SYS-4290", "Too many requests")
)

// wireErrors lists the errors whose message can legitimately arrive in a
// response "error" field.
var wireErrors = []*DomainError{
	ErrChannelUnavailable,
	ErrBadRequest,
	ErrBadAction,
	ErrKeyNotSpecified,
	ErrInvalidKey,
	ErrInvalidOrigin,
	ErrInvalidTTL,
	ErrStorage,
	ErrRateLimited,
}

// FromWireMessage maps a response "error" string back onto its sentinel.
// Unknown messages become a RemoteError.
func FromWireMessage(msg string) error {
	for _, e := range wireErrors {
		if e.Message == msg {
			return e
		}
	}
	return &RemoteError{Message: msg}
}

// RemoteError is an error message reported by the peer that has no local sentinel.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
