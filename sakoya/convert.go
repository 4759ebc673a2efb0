package sakoya

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Anyuluo996/BotShepherd/onebot"
)

// EventToReceive converts a OneBot message event into the MessageReceive
// shape. Returns nil for anything that is not a message event.
func EventToReceive(ev *onebot.Event, botID string) *MessageReceive {
	if ev == nil || ev.PostType() != "message" {
		return nil
	}
	isGroup := ev.MessageType() == "group"

	var content []Content
	for _, seg := range onebot.Segments(ev.Message()) {
		content = append(content, segmentToContent(seg))
	}
	content = append(content, quotedImages(ev)...)

	sender, _ := mapField(ev, "sender")
	mr := &MessageReceive{
		BotID:     botID,
		BotSelfID: ev.SelfID(),
		MsgID:     ev.MessageID(),
		UserType:  "direct",
		UserID:    ev.UserID(),
		Sender: map[string]any{
			"nickname": str(sender["nickname"]),
			"card":     str(sender["card"]),
		},
		UserPM:  defaultUserPM,
		Content: content,
	}
	if isGroup {
		mr.UserType = "group"
		mr.GroupID = ev.GroupID()
	}
	return mr
}

func segmentToContent(seg onebot.Segment) Content {
	switch seg.Type {
	case "text":
		return Content{Type: "text", Data: str(seg.Data["text"])}
	case "at":
		return Content{Type: "at", Data: str(seg.Data["qq"])}
	case "image":
		// gsuid takes the image as a bare string: base64://, an URL,
		// or a file name. Prefer the resolvable URL over the file field.
		src := str(seg.Data["url"])
		if src == "" {
			src = str(seg.Data["file"])
		}
		return Content{Type: "image", Data: src}
	case "record":
		return Content{Type: "record", Data: str(seg.Data["file"])}
	case "reply":
		return Content{Type: "reply", Data: str(seg.Data["id"])}
	default:
		// No sakoya equivalent; keep the CQ form so nothing is lost.
		return Content{Type: "text", Data: onebot.RawMessage([]onebot.Segment{seg})}
	}
}

// quotedImages lifts images out of the event-level reply object some bots
// attach, so the backend sees the quoted context.
func quotedImages(ev *onebot.Event) []Content {
	reply, ok := mapField(ev, "reply")
	if !ok {
		return nil
	}
	var out []Content
	for _, seg := range onebot.Segments(reply["message"]) {
		if seg.Type != "image" {
			continue
		}
		file := str(seg.Data["file"])
		switch {
		case strings.HasPrefix(file, "base64://"):
			out = append(out, Content{Type: "image", Data: map[string]any{"type": "b64", "content": strings.TrimPrefix(file, "base64://")}})
		case strings.HasPrefix(file, "http"):
			out = append(out, Content{Type: "image", Data: map[string]any{"type": "url", "content": file}})
		default:
			out = append(out, Content{Type: "image", Data: map[string]any{"type": "file", "content": file}})
		}
	}
	return out
}

// SendToAPIRequest converts a MessageSend from the backend into the
// OneBot send API call that delivers it. The echo is a fresh uuid so the
// proxy can route the bot's response back to this target.
func SendToAPIRequest(ms MessageSend) onebot.APIRequest {
	var segments []any
	for _, c := range ms.Content {
		segments = append(segments, contentToSegments(c)...)
	}
	if len(segments) == 0 {
		// NapCat rejects an empty message array.
		segments = append(segments, segMap("text", map[string]any{"text": ""}))
	}

	req := onebot.APIRequest{Echo: newEcho()}
	if ms.TargetType == "group" {
		req.Action = "send_group_msg"
		req.Params = map[string]any{"group_id": numericID(ms.TargetID), "message": segments}
	} else {
		req.Action = "send_private_msg"
		req.Params = map[string]any{"user_id": numericID(ms.TargetID), "message": segments}
	}
	return req
}

func contentToSegments(c Content) []any {
	switch c.Type {
	case "text", "markdown":
		return []any{segMap("text", map[string]any{"text": str(c.Data)})}
	case "at":
		return []any{segMap("at", map[string]any{"qq": str(c.Data)})}
	case "image":
		return imageSegment(c.Data)
	case "reply":
		return []any{segMap("reply", map[string]any{"id": str(c.Data)})}
	case "record":
		return []any{segMap("record", map[string]any{"file": str(c.Data)})}
	case "file":
		// Sakoya renders files as "{name}|{base64}".
		name, b64, ok := strings.Cut(str(c.Data), "|")
		if !ok {
			return nil
		}
		return []any{segMap("file", map[string]any{"file": "base64://" + b64, "name": name})}
	default:
		if strings.HasPrefix(c.Type, "log_") {
			return nil
		}
		if s := str(c.Data); s != "" {
			return []any{segMap("text", map[string]any{"text": s})}
		}
		return nil
	}
}

func imageSegment(data any) []any {
	switch d := data.(type) {
	case map[string]any:
		content := str(d["content"])
		if str(d["type"]) == "b64" && !strings.HasPrefix(content, "base64://") {
			content = "base64://" + content
		}
		return []any{segMap("image", map[string]any{"file": content})}
	default:
		if s := str(data); s != "" {
			return []any{segMap("image", map[string]any{"file": s})}
		}
		return nil
	}
}

// ReceiveToEvent converts a MessageReceive coming from the backend into a
// OneBot message event. Backends normally emit MessageSend; this covers
// relays that report full messages instead.
func ReceiveToEvent(mr MessageReceive) *onebot.Event {
	isGroup := mr.UserType == "group"

	var segments []any
	var raw strings.Builder
	for _, c := range mr.Content {
		switch c.Type {
		case "text", "markdown":
			text := str(c.Data)
			segments = append(segments, segMap("text", map[string]any{"text": text}))
			raw.WriteString(text)
		case "at":
			id := str(c.Data)
			segments = append(segments, segMap("at", map[string]any{"qq": id}))
			raw.WriteString("@" + id)
		case "image":
			segments = append(segments, imageSegment(c.Data)...)
			raw.WriteString("[图片]")
		case "reply":
			segments = append(segments, segMap("reply", map[string]any{"id": str(c.Data)}))
			raw.WriteString("[回复]")
		case "record":
			if s := str(c.Data); s != "" {
				segments = append(segments, segMap("record", map[string]any{"file": s}))
			}
			raw.WriteString("[语音]")
		case "file":
			if name, b64, ok := strings.Cut(str(c.Data), "|"); ok {
				segments = append(segments, segMap("file", map[string]any{"file": "base64://" + b64, "name": name}))
			}
			raw.WriteString("[文件]")
		case "node":
			raw.WriteString(nodeText(c.Data))
		case "buttons":
			raw.WriteString("[按钮消息]")
		default:
			raw.WriteString(str(c.Data))
		}
	}

	sender := map[string]any{
		"user_id":  numericID(mr.UserID),
		"nickname": str(mr.Sender["nickname"]),
		"card":     str(mr.Sender["card"]),
		"sex":      orDefault(mr.Sender["sex"], "unknown"),
		"age":      orDefault(mr.Sender["age"], 0),
		"area":     orDefault(mr.Sender["area"], ""),
		"level":    orDefault(mr.Sender["level"], ""),
		"role":     orDefault(mr.Sender["role"], "member"),
		"title":    orDefault(mr.Sender["title"], ""),
	}

	fields := map[string]any{
		"post_type":    "message",
		"message_type": "private",
		"sub_type":     "friend",
		"message_id":   numericID(mr.MsgID),
		"user_id":      numericID(mr.UserID),
		"raw_message":  raw.String(),
		"message":      segments,
		"font":         0,
		"sender":       sender,
		"time":         0,
		"self_id":      numericID(mr.BotSelfID),
	}
	if isGroup {
		fields["message_type"] = "group"
		fields["sub_type"] = "normal"
		fields["group_id"] = numericID(mr.GroupID)
	}
	return onebot.FromMap(fields)
}

// nodeText flattens a forward node, which nests lists of segment lists,
// down to its text parts.
func nodeText(data any) string {
	items, ok := data.([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		for _, seg := range onebot.Segments(item) {
			if seg.Type == "text" {
				b.WriteString(str(seg.Data["text"]))
			}
		}
	}
	return b.String()
}

func segMap(typ string, data map[string]any) map[string]any {
	return map[string]any{"type": typ, "data": data}
}

func mapField(ev *onebot.Event, key string) (map[string]any, bool) {
	v, _ := ev.Get(key)
	m, ok := v.(map[string]any)
	return m, ok
}

// numericID parses an account id into a number, 0 when it is not one.
// NapCat and friends want numeric ids even though sakoya carries strings.
func numericID(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func orDefault(v, def any) any {
	if v == nil {
		return def
	}
	return v
}

func str(v any) string { return onebot.Stringify(v) }

func newEcho() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
