// Package dispatcher implements the server side of the corslight protocol.
//
// A Dispatcher runs inside an embedded document. It listens on the port to
// the embedding parent, announces readiness once, and answers every
// decodable request with exactly one response addressed to the origin the
// request came from:
//
//	{"act":"cl::get","id":3,"key":"theme"}
//	    -> {"act":"cl::get","id":3,"result":{"value":"dark","expire":false}}
//
// Messages that are not requests at all get an id-less "badrequest" answer;
// requests naming an unknown verb get a "badaction" answer carrying their
// id. Access control and expiry are delegated to the storage engine.
package dispatcher
