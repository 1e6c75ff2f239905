// Package netport carries the corslight protocol over a stream connection.
//
// Framing is newline-delimited: every message is one line. Right after the
// connection is established each side writes a single handshake line with
// its own origin and reads the peer's; from then on the peer origin is the
// sender origin of every inbound message.
//
// The read loop starts with the first Listen call, so a handler is always
// attached before the first message is consumed.
package netport
