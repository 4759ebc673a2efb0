package onebot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// APIRequest is an action call as a backend issues it.
type APIRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
	Echo   string         `json:"echo,omitempty"`
}

// Marshal encodes the request for the wire.
func (r APIRequest) Marshal() ([]byte, error) {
	return marshalJSON(r)
}

// APIResponse is the reply to an action call.
type APIResponse struct {
	Status  string `json:"status"`
	Retcode int64  `json:"retcode"`
	Data    any    `json:"data,omitempty"`
	Echo    string `json:"echo,omitempty"`
}

// Marshal encodes the response for the wire.
func (r APIResponse) Marshal() ([]byte, error) {
	return marshalJSON(r)
}

// ComposeEcho builds the correlation key for an API request relayed to
// the bot on behalf of a target.
func ComposeEcho(targetIndex int, echo string) string {
	return fmt.Sprintf("%d_%s", targetIndex, echo)
}

// ParseEcho splits a correlation key into the 1-based target index and
// the original echo. ok is false when the value carries no index prefix,
// which means the response belongs to a request the proxy did not relay.
func ParseEcho(key string) (targetIndex int, echo string, ok bool) {
	sep := strings.Index(key, "_")
	if sep <= 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(key[:sep])
	if err != nil || n <= 0 {
		return 0, "", false
	}
	return n, key[sep+1:], true
}

// MessageSent converts a successful send_* API request into a synthetic
// message event so outbound sends appear in message history. The result
// has post_type "message_sent", the bot account as sender, the original
// segments as message, a rebuilt raw_message and the current time.
// Returns nil when the action is not a send.
//
// extra fields, such as the message_id reported by the response, are
// merged last and may override anything above.
func MessageSent(req *Event, selfID string, extra map[string]any) *Event {
	if req == nil || !strings.Contains(req.Action(), "send") {
		return nil
	}

	fields := make(map[string]any, len(req.Params())+6)
	for k, v := range req.Params() {
		fields[k] = v
	}
	fields["self_id"] = selfID
	if _, ok := fields["sender"]; !ok {
		fields["sender"] = map[string]any{"user_id": selfID, "nickname": "BS Bot Send"}
	}
	fields["post_type"] = "message_sent"
	fields["raw_message"] = RawMessage(fields["message"])
	fields["time"] = time.Now().Unix()
	for k, v := range extra {
		fields[k] = v
	}
	return FromMap(fields)
}
