// Package channel defines the origin-aware message transport that connects a
// client with the dispatcher running inside an embedded document.
//
// A Port is one side of a channel. Messages posted on a Port are delivered
// asynchronously to the handlers listening on the peer Port, together with
// the origin of the sender. A message addressed to a target origin that does
// not match the receiver is dropped, as a browser would.
package channel

import (
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
)

// AnyOrigin addresses a message to the peer regardless of its origin.
const AnyOrigin = "*"

// ErrClosed is returned when posting on a closed port.
var ErrClosed = errors.New("channel: port closed")

// Handler receives one inbound message and the origin of its sender.
type Handler func(origin string, payload []byte)

// Port is one side of a message channel.
type Port interface {
	// Post sends payload to the peer if the peer's origin matches
	// targetOrigin (or targetOrigin is AnyOrigin).
	Post(payload []byte, targetOrigin string) error

	// Listen registers h for inbound messages. The returned function
	// removes the registration.
	Listen(h Handler) (cancel func())
}

// Opener creates the client side of a channel to the document at target.
// The handler is attached before the embedded document can send anything.
type Opener interface {
	Open(target string, h Handler) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(target string, h Handler) (Port, error)

// Open implements Opener.
func (f OpenerFunc) Open(target string, h Handler) (Port, error) {
	return f(target, h)
}

// Frame is an embedding document: the context a dispatcher is installed in.
type Frame struct {
	origin    string
	parent    Port
	installed atomic.Bool
}

// NewFrame returns an embedded document at origin whose parent is reached
// through parent.
func NewFrame(origin string, parent Port) *Frame {
	return &Frame{origin: origin, parent: parent}
}

// TopLevel returns a document that is not embedded anywhere.
func TopLevel(origin string) *Frame {
	return &Frame{origin: origin}
}

// Origin returns the origin the document was loaded from.
func (f *Frame) Origin() string {
	return f.origin
}

// Parent returns the port to the embedding document, or nil for a top-level
// document.
func (f *Frame) Parent() Port {
	return f.parent
}

// IsTop reports whether the document is not embedded.
func (f *Frame) IsTop() bool {
	return f.parent == nil
}

// Install marks the document as hosting a dispatcher. It returns false if one
// was already installed.
func (f *Frame) Install() bool {
	return f.installed.CompareAndSwap(false, true)
}

// Installed reports whether a dispatcher was installed.
func (f *Frame) Installed() bool {
	return f.installed.Load()
}

// Hostname returns the lower-cased hostname of an origin or URL, or "" if it
// cannot be parsed.
func Hostname(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// OriginOf returns the scheme://host[:port] origin of a URL.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("channel: url has no origin: " + rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// TargetMatches reports whether a message addressed to target may be
// delivered to a receiver at receiverOrigin.
func TargetMatches(target, receiverOrigin string) bool {
	if target == AnyOrigin {
		return true
	}
	want, err := OriginOf(target)
	if err != nil {
		return false
	}
	got, err := OriginOf(receiverOrigin)
	if err != nil {
		return false
	}
	return want == got
}
