package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ExpiryKind enumerates how a stored record expires.
type ExpiryKind int

const (
	// ExpiryNever means the record does not expire.
	ExpiryNever ExpiryKind = iota
	// ExpiryAt means the record expires at an absolute instant.
	ExpiryAt
	// ExpirySession means the record lives as long as one browser session.
	ExpirySession
)

// Expiry is the expiry policy of a persisted record.
type Expiry struct {
	Kind    ExpiryKind
	At      int64  // Unix milliseconds, ExpiryAt only
	Session string // Session token, ExpirySession only
}

// NeverExpires returns an Expiry that never fires.
func NeverExpires() Expiry {
	return Expiry{Kind: ExpiryNever}
}

// ExpiresAt returns an Expiry firing at t.
func ExpiresAt(t time.Time) Expiry {
	return Expiry{Kind: ExpiryAt, At: t.UnixMilli()}
}

// SessionBound returns an Expiry tied to the given session token.
func SessionBound(token string) Expiry {
	return Expiry{Kind: ExpirySession, Session: token}
}

// EvictionReason explains why a record was considered expired.
type EvictionReason string

const (
	// EvictNone means the record is still live.
	EvictNone EvictionReason = ""
	// EvictDeadline means the absolute expiry has been reached.
	EvictDeadline EvictionReason = "deadline"
	// EvictSession means the record belongs to a previous session.
	EvictSession EvictionReason = "session"
)

// Check evaluates the policy at now against the current session token.
// A deadline is reached once now is at or past the expiry instant.
func (e Expiry) Check(now time.Time, currentSession string) EvictionReason {
	switch e.Kind {
	case ExpiryAt:
		if now.UnixMilli() >= e.At {
			return EvictDeadline
		}
	case ExpirySession:
		if e.Session != currentSession {
			return EvictSession
		}
	}
	return EvictNone
}

// Record is the value persisted under a namespaced key.
type Record struct {
	Value  json.RawMessage
	Expiry Expiry
}

// recordJSON is the persisted and wire form of a Record.
type recordJSON struct {
	Value   json.RawMessage `json:"value"`
	Expire  json.RawMessage `json:"expire"`
	Session string          `json:"session,omitempty"`
}

var jsonFalse = json.RawMessage("false")

// MarshalJSON encodes the record as {"value":..,"expire":false|ms[,"session":..]}.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Value:  r.Value,
		Expire: jsonFalse,
	}
	if len(out.Value) == 0 {
		out.Value = json.RawMessage("null")
	}
	switch r.Expiry.Kind {
	case ExpiryAt:
		out.Expire = json.RawMessage(fmt.Sprintf("%d", r.Expiry.At))
	case ExpirySession:
		out.Session = r.Expiry.Session
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the persisted form. A session marker takes precedence
// over an absolute deadline.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	r.Value = in.Value
	r.Expiry = NeverExpires()

	if in.Session != "" {
		r.Expiry = SessionBound(in.Session)
		return nil
	}

	expire := bytes.TrimSpace(in.Expire)
	if len(expire) == 0 || bytes.Equal(expire, jsonFalse) || bytes.Equal(expire, []byte("null")) {
		return nil
	}

	var at int64
	if err := json.Unmarshal(expire, &at); err == nil {
		r.Expiry = Expiry{Kind: ExpiryAt, At: at}
		return nil
	}

	// Fractional or out of range deadlines from other writers.
	var f float64
	if err := json.Unmarshal(expire, &f); err != nil || math.IsNaN(f) {
		return fmt.Errorf("decode expire: %s", expire)
	}
	switch {
	case f >= math.MaxInt64:
		at = math.MaxInt64
	case f <= math.MinInt64:
		at = math.MinInt64
	default:
		at = int64(f)
	}
	r.Expiry = Expiry{Kind: ExpiryAt, At: at}
	return nil
}
