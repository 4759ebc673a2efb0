package onebot

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Anyuluo996/BotShepherd/errors"
)

// Kind classifies a decoded payload.
type Kind int

const (
	// KindUnknown is a JSON object that matches none of the known shapes.
	KindUnknown Kind = iota
	// KindEvent is a push event, identified by a post_type field.
	KindEvent
	// KindAPIRequest is an action call, identified by an action field.
	KindAPIRequest
	// KindAPIResponse is an action reply, identified by an echo field
	// together with status or retcode.
	KindAPIResponse
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindAPIRequest:
		return "api_request"
	case KindAPIResponse:
		return "api_response"
	default:
		return "unknown"
	}
}

// Event is a decoded OneBot v11 payload. The name covers all three frame
// shapes on the wire; Kind tells them apart. The original JSON is retained
// so an unmodified frame forwards byte for byte.
type Event struct {
	fields map[string]any
	raw    []byte
	dirty  bool
}

// Parse decodes a JSON frame into an Event. Numbers are kept as
// json.Number so large account IDs round-trip without loss.
func Parse(data []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "payload is not a JSON object", http.StatusBadRequest).WithCause(err)
	}
	return &Event{fields: fields, raw: data}, nil
}

// FromMap wraps an already assembled payload, e.g. a synthesized event or
// an API call built by a command. The event has no original bytes and is
// always re-encoded by Marshal.
func FromMap(fields map[string]any) *Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Event{fields: fields, dirty: true}
}

// Raw returns the bytes the event was parsed from, or nil for events
// built with FromMap.
func (e *Event) Raw() []byte {
	return e.raw
}

// Marshal returns the wire form of the event: the original bytes when no
// field was modified, otherwise a fresh encoding. HTML characters are not
// escaped, matching what OneBot implementations emit.
func (e *Event) Marshal() ([]byte, error) {
	if !e.dirty && e.raw != nil {
		return e.raw, nil
	}
	return marshalJSON(e.fields)
}

// Map exposes the decoded fields. Mutating the returned map directly
// bypasses dirty tracking; use Set for changes that must be marshaled.
func (e *Event) Map() map[string]any {
	return e.fields
}

// Get returns a top-level field.
func (e *Event) Get(key string) (any, bool) {
	v, ok := e.fields[key]
	return v, ok
}

// Set replaces a top-level field and marks the event for re-encoding.
func (e *Event) Set(key string, value any) {
	e.fields[key] = value
	e.dirty = true
}

// Kind classifies the payload by shape: post_type marks a push event,
// action an API request, and echo with status or retcode an API response.
func (e *Event) Kind() Kind {
	if _, ok := e.fields["post_type"]; ok {
		return KindEvent
	}
	if _, ok := e.fields["action"]; ok {
		return KindAPIRequest
	}
	if _, ok := e.fields["echo"]; ok {
		_, hasStatus := e.fields["status"]
		_, hasRetcode := e.fields["retcode"]
		if hasStatus || hasRetcode {
			return KindAPIResponse
		}
	}
	return KindUnknown
}

// PostType returns the post_type field, empty when absent.
func (e *Event) PostType() string { return e.str("post_type") }

// MessageType returns the message_type field ("group" or "private").
func (e *Event) MessageType() string { return e.str("message_type") }

// MetaEventType returns the meta_event_type field.
func (e *Event) MetaEventType() string { return e.str("meta_event_type") }

// Action returns the action field of an API request.
func (e *Event) Action() string { return e.str("action") }

// Status returns the status field of an API response.
func (e *Event) Status() string { return e.str("status") }

// SelfID returns the bot account the payload belongs to, as a string
// regardless of how the peer encoded it.
func (e *Event) SelfID() string { return e.str("self_id") }

// UserID returns the sender account of a message event.
func (e *Event) UserID() string { return e.str("user_id") }

// GroupID returns the group a message event was posted in.
func (e *Event) GroupID() string { return e.str("group_id") }

// MessageID returns the message identifier.
func (e *Event) MessageID() string { return e.str("message_id") }

// Echo returns the echo field as a string, empty when absent or not a
// scalar value.
func (e *Event) Echo() string { return e.str("echo") }

// Message returns the message field, which is either a plain string or a
// segment array depending on the peer.
func (e *Event) Message() any { return e.fields["message"] }

// Params returns the params object of an API request, nil when absent.
func (e *Event) Params() map[string]any {
	p, _ := e.fields["params"].(map[string]any)
	return p
}

// Data returns the data object of an API response, nil when the data is
// absent or an array.
func (e *Event) Data() map[string]any {
	d, _ := e.fields["data"].(map[string]any)
	return d
}

// Retcode returns the retcode field of an API response. ok is false when
// the field is absent or not numeric.
func (e *Event) Retcode() (int64, bool) {
	switch v := e.fields["retcode"].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// APISuccess reports whether the payload is an API response with status
// "ok" and retcode 0.
func (e *Event) APISuccess() bool {
	if e.Kind() != KindAPIResponse {
		return false
	}
	rc, ok := e.Retcode()
	return ok && e.Status() == "ok" && rc == 0
}

// IsMetaEvent reports whether the payload is a meta event (heartbeat,
// lifecycle). Sakoya targets never receive these.
func (e *Event) IsMetaEvent() bool {
	return e.PostType() == "meta_event"
}

// IsLifecycle reports whether the payload is the lifecycle meta event a
// bot sends right after connecting. The proxy keeps that frame to replay
// it when a target reconnects.
func (e *Event) IsLifecycle() bool {
	return e.IsMetaEvent() && e.MetaEventType() == "lifecycle"
}

func (e *Event) str(key string) string {
	return Stringify(e.fields[key])
}

// Stringify renders a scalar JSON value as a string. Non-scalar values
// render empty so accessors never panic on malformed frames.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// marshalJSON encodes without HTML escaping, so CQ codes and URLs keep
// their literal ampersands on the wire.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
