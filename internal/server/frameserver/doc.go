// Package frameserver hosts embedded storage documents over the network.
//
// Each accepted connection stands for one embedding parent document: the
// connection is wrapped in a netport.Conn, given its own channel.Frame, and
// a dispatcher is installed into that frame. The dispatcher announces
// readiness as soon as it is installed.
//
// The engine is looked up per connection, so a configuration reload that
// swaps the manifest only affects connections accepted afterwards.
package frameserver
