package domain

import "encoding/json"

// Request is a single store, fetch or remove call issued by a client.
type Request struct {
	ID    uint64
	Verb  Verb
	Key   string
	Value json.RawMessage // VerbStore only
	TTL   TTL             // VerbStore only
}

// Response answers a Request. ID is nil for responses that cannot be
// attributed to a request (bad requests, readiness announcements).
type Response struct {
	ID     *uint64
	Result json.RawMessage
	Error  string
}

// NewResponse returns an empty success response for the request id.
func NewResponse(id uint64) *Response {
	return &Response{ID: &id}
}

// ErrorResponse returns a response carrying err's wire message.
func ErrorResponse(id uint64, err error) *Response {
	return &Response{ID: &id, Error: WireMessage(err)}
}

// Failed reports whether the response carries an error.
func (r *Response) Failed() bool {
	return r.Error != ""
}
