package sakoya

import (
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/onebot"
)

// passthroughActions cross the adapter without conversion; the backend
// understands their OneBot form.
var passthroughActions = map[string]struct{}{
	"get_login_info":   {},
	"get_status":       {},
	"get_version_info": {},
	"lifecycle":        {},
	"_connect":         {},
}

// replyCacheSize bounds the per-connection message history used for
// quote completion.
const replyCacheSize = 100

// Conn wraps a target WebSocket and converts between OneBot v11 and the
// sakoya protocol on the fly. It is not safe for concurrent writers, the
// same as the underlying gorilla connection.
type Conn struct {
	ws      *websocket.Conn
	botID   string
	log     *logger.Logger
	replies *replyCache
}

// Wrap builds an adapter around an established target socket. botID is
// normally taken from the target URL with BotIDFromURL.
func Wrap(ws *websocket.Conn, botID string, log *logger.Logger) *Conn {
	if botID == "" {
		botID = DefaultBotID
	}
	return &Conn{
		ws:      ws,
		botID:   botID,
		log:     log.WithFields(logger.Fields("bot_id", botID)),
		replies: newReplyCache(replyCacheSize),
	}
}

// WriteFrame forwards a OneBot frame to the backend, converting where the
// backend needs sakoya shapes. Meta events are swallowed. Frames the
// adapter cannot interpret pass through untouched.
func (c *Conn) WriteFrame(data []byte) error {
	ev, err := onebot.Parse(data)
	if err != nil {
		c.log.Debug("Non-JSON frame, forwarding as-is")
		return c.send(data)
	}

	// API responses cross unconverted.
	_, hasEcho := ev.Get("echo")
	_, hasStatus := ev.Get("status")
	_, hasRetcode := ev.Get("retcode")
	if hasEcho || hasStatus || hasRetcode {
		return c.send(data)
	}

	if ev.IsMetaEvent() {
		return nil
	}
	if ev.PostType() == "message" {
		return c.writeMessage(ev, data)
	}

	action := ev.Action()
	if _, ok := passthroughActions[action]; ok {
		c.log.Debug("Passthrough action", logger.Fields("action", action))
		return c.send(data)
	}
	if strings.Contains(action, "send") && strings.Contains(action, "_msg") {
		return c.writeSendAPI(ev, data)
	}
	return c.send(data)
}

func (c *Conn) writeMessage(ev *onebot.Event, data []byte) error {
	c.replies.complete(ev)
	mr := EventToReceive(ev, c.botID)
	if mr == nil {
		return c.send(data)
	}
	payload, err := json.Marshal(mr)
	if err != nil {
		c.log.Warn("Message conversion failed, forwarding as-is", logger.ErrorFields("convert", err))
		return c.send(data)
	}
	return c.send(payload)
}

func (c *Conn) writeSendAPI(ev *onebot.Event, data []byte) error {
	ms := apiToSend(ev)
	payload, err := json.Marshal(ms)
	if err != nil {
		c.log.Warn("Send conversion failed, forwarding as-is", logger.ErrorFields("convert", err))
		return c.send(data)
	}
	return c.send(payload)
}

// ReadFrame reads one frame from the backend and converts it into its
// OneBot form: MessageSend becomes a send API call with a fresh echo,
// MessageReceive becomes a message event, everything else passes through.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return raw, nil
	}
	_, hasContent := probe["content"]
	_, hasTargetType := probe["target_type"]
	_, hasTargetID := probe["target_id"]
	_, hasBotID := probe["bot_id"]

	switch {
	case hasTargetType || hasTargetID:
		var ms MessageSend
		if err := json.Unmarshal(raw, &ms); err != nil {
			c.log.Warn("Undecodable MessageSend, forwarding as-is", logger.ErrorFields("decode", err))
			return raw, nil
		}
		req := SendToAPIRequest(ms)
		c.log.Debug("Converted backend send", logger.Fields("action", req.Action, "echo", req.Echo))
		return req.Marshal()
	case hasBotID && hasContent:
		var mr MessageReceive
		if err := json.Unmarshal(raw, &mr); err != nil {
			return raw, nil
		}
		return ReceiveToEvent(mr).Marshal()
	default:
		return raw, nil
	}
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// send writes binary frames; gsuid-core speaks bytes, not text.
func (c *Conn) send(data []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

// apiToSend converts a OneBot send API call into the MessageSend shape.
func apiToSend(ev *onebot.Event) MessageSend {
	params := ev.Params()
	ms := MessageSend{
		BotID:     DefaultBotID,
		BotSelfID: ev.SelfID(),
	}
	if str(params["message_type"]) == "group" || params["group_id"] != nil {
		ms.TargetType = "group"
		ms.TargetID = str(params["group_id"])
	} else {
		ms.TargetType = "direct"
		ms.TargetID = str(params["user_id"])
	}
	for _, seg := range onebot.Segments(params["message"]) {
		ms.Content = append(ms.Content, outboundContent(seg)...)
	}
	return ms
}

func outboundContent(seg onebot.Segment) []Content {
	switch seg.Type {
	case "text":
		return []Content{{Type: "text", Data: str(seg.Data["text"])}}
	case "at":
		return []Content{{Type: "at", Data: str(seg.Data["qq"])}}
	case "image":
		file := str(seg.Data["file"])
		switch {
		case strings.HasPrefix(file, "base64://"):
			return []Content{{Type: "image", Data: map[string]any{"type": "b64", "content": strings.TrimPrefix(file, "base64://")}}}
		case strings.HasPrefix(file, "http"):
			return []Content{{Type: "image", Data: map[string]any{"type": "url", "content": file}}}
		default:
			return []Content{{Type: "image", Data: map[string]any{"type": "file", "content": file}}}
		}
	case "record":
		return []Content{{Type: "record", Data: str(seg.Data["file"])}}
	case "file":
		file := str(seg.Data["file"])
		name := str(seg.Data["name"])
		if name == "" {
			name = "unknown"
		}
		if b64, ok := strings.CutPrefix(file, "base64://"); ok {
			return []Content{{Type: "file", Data: name + "|" + b64}}
		}
		return []Content{{Type: "text", Data: "[文件: " + name + "]"}}
	case "reply":
		return []Content{{Type: "reply", Data: str(seg.Data["id"])}}
	case "forward", "node":
		return []Content{{Type: "text", Data: "[合并转发消息暂不支持]"}}
	default:
		return []Content{{Type: "text", Data: onebot.RawMessage([]onebot.Segment{seg})}}
	}
}
