package domain

import "time"

// TTLKind enumerates the expiry policies a store request may ask for.
type TTLKind int

const (
	// TTLNever stores the record without expiry.
	TTLNever TTLKind = iota
	// TTLSession binds the record to the current browser session.
	TTLSession
	// TTLRelative expires the record a fixed duration after it is stored.
	TTLRelative
	// TTLInvalid marks a TTL value that could not be interpreted.
	TTLInvalid
)

// TTL is the expiry policy attached to a store request.
// The zero value means "never expire".
type TTL struct {
	kind TTLKind
	d    time.Duration
	raw  string
}

// NoTTL returns a policy that never expires.
func NoTTL() TTL {
	return TTL{kind: TTLNever}
}

// SessionTTL returns a policy bound to the current browser session.
func SessionTTL() TTL {
	return TTL{kind: TTLSession}
}

// RelativeTTL returns a policy that expires d after the record is stored.
// Negative durations are kept as-is and rejected by Valid.
func RelativeTTL(d time.Duration) TTL {
	return TTL{kind: TTLRelative, d: d}
}

// UnknownTTL records a wire value that is not a recognized TTL form.
func UnknownTTL(raw string) TTL {
	return TTL{kind: TTLInvalid, raw: raw}
}

// Kind returns the policy kind.
func (t TTL) Kind() TTLKind {
	return t.kind
}

// Duration returns the relative duration for TTLRelative policies.
func (t TTL) Duration() time.Duration {
	return t.d
}

// Raw returns the original wire text of an unrecognized policy.
func (t TTL) Raw() string {
	return t.raw
}

// Valid reports whether the policy can be applied.
func (t TTL) Valid() bool {
	switch t.kind {
	case TTLNever, TTLSession:
		return true
	case TTLRelative:
		return t.d >= 0
	default:
		return false
	}
}

// String returns a human readable policy description.
func (t TTL) String() string {
	switch t.kind {
	case TTLNever:
		return "never"
	case TTLSession:
		return "session"
	case TTLRelative:
		return t.d.String()
	default:
		return "invalid(" + t.raw + ")"
	}
}
