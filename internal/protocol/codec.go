// Package protocol implements the corslight wire format.
//
// Messages are compact JSON objects. Every message carries an "act" field of
// the form "<namespace>::<verb>"; requests also carry a numeric "id" that the
// matching response echoes.
package protocol

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/yndnr/corslight-go/internal/core/domain"
)

// WireVersion identifies the act/ttl field convention implemented here.
// The older cmd/expire/session convention is not accepted.
const WireVersion = 2

const (
	// DefaultNamespace is used when no namespace is configured.
	DefaultNamespace = "cl"

	// Separator joins a namespace with a verb, and a namespace with a storage key.
	Separator = "::"
)

// Reserved actions that are not verbs.
const (
	ActionReady      = "ready"
	ActionBadRequest = "badrequest"
	ActionBadAction  = "badaction"
)

// Codec encodes and decodes messages for one namespace.
type Codec struct {
	namespace string
}

// New returns a Codec for namespace, or for DefaultNamespace when empty.
func New(namespace string) *Codec {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Codec{namespace: namespace}
}

// Namespace returns the codec namespace.
func (c *Codec) Namespace() string {
	return c.namespace
}

// Action returns the full action string for name.
func (c *Codec) Action(name string) string {
	return c.namespace + Separator + name
}

// ParseAction maps a wire action onto a verb. ok is false when the namespace
// prefix is wrong or the suffix is not one of the three verbs.
func (c *Codec) ParseAction(act string) (domain.Verb, bool) {
	prefix := c.namespace + Separator
	if !strings.HasPrefix(act, prefix) {
		return 0, false
	}
	return domain.ParseVerb(strings.TrimPrefix(act, prefix))
}

// StorageKey returns the namespaced key a record is persisted under.
func (c *Codec) StorageKey(key string) string {
	return c.namespace + Separator + key
}

// wireResponse is the JSON shape of every server-to-client message.
type wireResponse struct {
	Act    string          `json:"act"`
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// wireRequest is the JSON shape of a client-to-server request.
type wireRequest struct {
	Act   string          `json:"act"`
	ID    uint64          `json:"id"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
	TTL   json.RawMessage `json:"ttl,omitempty"`
}

// EncodeRequest serializes a request.
func (c *Codec) EncodeRequest(req *domain.Request) ([]byte, error) {
	w := wireRequest{
		Act: c.Action(req.Verb.String()),
		ID:  req.ID,
		Key: req.Key,
	}
	if req.Verb == domain.VerbStore {
		w.Value = req.Value
		if len(w.Value) == 0 {
			w.Value = json.RawMessage("null")
		}
		ttl, err := encodeTTL(req.TTL)
		if err != nil {
			return nil, err
		}
		w.TTL = ttl
	}
	return json.Marshal(w)
}

func encodeTTL(t domain.TTL) (json.RawMessage, error) {
	switch t.Kind() {
	case domain.TTLNever:
		return json.RawMessage("false"), nil
	case domain.TTLSession:
		return json.RawMessage(`"session"`), nil
	case domain.TTLRelative:
		return json.Marshal(t.Duration().Milliseconds())
	default:
		if t.Raw() != "" && json.Valid([]byte(t.Raw())) {
			return json.RawMessage(t.Raw()), nil
		}
		return json.Marshal(t.Raw())
	}
}

// DecodeRequest parses a request payload.
//
// It returns domain.ErrBadRequest when the payload is not an object or lacks a
// usable act or id; no request is returned in that case. It returns
// domain.ErrBadAction together with a request carrying only the id when the
// action is not a recognized verb of this namespace.
func (c *Codec) DecodeRequest(payload []byte) (*domain.Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, domain.ErrBadRequest
	}

	var act string
	if raw, ok := fields["act"]; !ok || json.Unmarshal(raw, &act) != nil || act == "" {
		return nil, domain.ErrBadRequest
	}

	id, ok := decodeID(fields["id"])
	if !ok {
		return nil, domain.ErrBadRequest
	}

	req := &domain.Request{ID: id}

	verb, ok := c.ParseAction(act)
	if !ok {
		return req, domain.ErrBadAction.WithDetails(act)
	}
	req.Verb = verb

	if raw, ok := fields["key"]; ok {
		var key string
		if json.Unmarshal(raw, &key) == nil {
			req.Key = key
		}
	}

	if verb == domain.VerbStore {
		if raw, ok := fields["value"]; ok {
			req.Value = raw
		} else {
			req.Value = json.RawMessage("null")
		}
		req.TTL = decodeTTL(fields["ttl"])
	}

	return req, nil
}

// decodeID accepts a non-negative integral JSON number.
func decodeID(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return uint64(f), true
}

// decodeTTL interprets "session", a millisecond count, false or absence.
func decodeTTL(raw json.RawMessage) domain.TTL {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("false")) || bytes.Equal(raw, []byte("null")) {
		return domain.NoTTL()
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "session" {
			return domain.SessionTTL()
		}
		return domain.UnknownTTL(string(raw))
	}

	var ms float64
	if json.Unmarshal(raw, &ms) == nil && !math.IsInf(ms, 0) && !math.IsNaN(ms) {
		return domain.RelativeTTL(millis(ms))
	}

	return domain.UnknownTTL(string(raw))
}

// maxTTLMillis is the largest millisecond count a time.Duration can hold.
const maxTTLMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// millis converts a wire millisecond count, saturating at the Duration
// range instead of wrapping.
func millis(ms float64) time.Duration {
	switch {
	case ms >= maxTTLMillis:
		return time.Duration(math.MaxInt64)
	case ms <= -maxTTLMillis:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// EncodeResponse serializes a response to a request of the given verb.
func (c *Codec) EncodeResponse(verb domain.Verb, resp *domain.Response) ([]byte, error) {
	return json.Marshal(wireResponse{
		Act:    c.Action(verb.String()),
		ID:     resp.ID,
		Result: resp.Result,
		Error:  resp.Error,
	})
}

// EncodeReady serializes the readiness announcement.
func (c *Codec) EncodeReady() ([]byte, error) {
	return json.Marshal(wireResponse{Act: c.Action(ActionReady)})
}

// EncodeBadRequest serializes the id-less answer to an unparseable request.
func (c *Codec) EncodeBadRequest() ([]byte, error) {
	return json.Marshal(wireResponse{
		Act:   c.Action(ActionBadRequest),
		Error: domain.ErrBadRequest.Message,
	})
}

// EncodeBadAction serializes the answer to an unrecognized verb.
func (c *Codec) EncodeBadAction(id uint64) ([]byte, error) {
	return json.Marshal(wireResponse{
		Act:   c.Action(ActionBadAction),
		ID:    &id,
		Error: domain.ErrBadAction.Message,
	})
}

// EncodeError serializes an error response with the request id.
func (c *Codec) EncodeError(verb domain.Verb, id uint64, err error) ([]byte, error) {
	return c.EncodeResponse(verb, domain.ErrorResponse(id, err))
}

// Message is a decoded server-to-client message.
type Message struct {
	Act      string
	Response domain.Response
}

// IsReady reports whether the message is the readiness announcement.
func (c *Codec) IsReady(m *Message) bool {
	return m.Act == c.Action(ActionReady)
}

// DecodeResponse parses a server-to-client message. The id is left nil when
// absent or not a valid request id.
func (c *Codec) DecodeResponse(payload []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, domain.ErrMalformedPayload
	}

	m := &Message{}
	if raw, ok := fields["act"]; ok {
		_ = json.Unmarshal(raw, &m.Act)
	}
	if id, ok := decodeID(fields["id"]); ok {
		m.Response.ID = &id
	}
	if raw, ok := fields["result"]; ok {
		m.Response.Result = raw
	}
	if raw, ok := fields["error"]; ok {
		var msg string
		if json.Unmarshal(raw, &msg) == nil {
			m.Response.Error = msg
		}
	}
	return m, nil
}
