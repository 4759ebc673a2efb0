package sakoya

import (
	"net/url"
	"strings"
)

// Content is one entry of a sakoya message. Data is a plain string for
// most types; images use either a string or a {type, content} object
// depending on direction.
type Content struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageReceive is the payload gsuid-core expects for an incoming
// message.
type MessageReceive struct {
	BotID     string         `json:"bot_id"`
	BotSelfID string         `json:"bot_self_id"`
	MsgID     string         `json:"msg_id"`
	UserType  string         `json:"user_type"`
	GroupID   string         `json:"group_id,omitempty"`
	UserID    string         `json:"user_id"`
	Sender    map[string]any `json:"sender"`
	UserPM    int            `json:"user_pm"`
	Content   []Content      `json:"content"`
}

// MessageSend is the payload gsuid-core emits when it wants a message
// delivered.
type MessageSend struct {
	BotID      string    `json:"bot_id"`
	BotSelfID  string    `json:"bot_self_id"`
	MsgID      string    `json:"msg_id"`
	TargetType string    `json:"target_type,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Content    []Content `json:"content,omitempty"`
}

// defaultUserPM is the gsuid permission level of an ordinary user.
const defaultUserPM = 3

// DefaultBotID is used when the target URL carries no bot id.
const DefaultBotID = "Bot"

// IsSakoyaPath reports whether a WebSocket path has the sakoya shape
// /ws/{bot_id}.
func IsSakoyaPath(path string) bool {
	_, ok := botIDFromPath(path)
	return ok
}

// BotIDFromURL extracts the bot id from a target URL of the form
// ws://host/ws/{bot_id}, falling back to DefaultBotID.
func BotIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultBotID
	}
	if id, ok := botIDFromPath(u.Path); ok && id != "" {
		return id
	}
	return DefaultBotID
}

func botIDFromPath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	parts := strings.Split(path, "/")
	if len(parts) >= 3 && parts[1] == "ws" {
		return parts[2], true
	}
	return "", false
}
