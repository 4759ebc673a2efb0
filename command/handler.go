package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/Anyuluo996/BotShepherd/botauth"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/onebot"
	"github.com/Anyuluo996/BotShepherd/util"
)

// DefaultPrefix is used when the config does not set one.
const DefaultPrefix = "bs"

// Handler turns command-shaped message events into chat replies.
type Handler struct {
	registry *Registry
	prefix   func() string
	auth     *botauth.Manager
	log      *logger.Logger
}

// NewHandler wires a handler. prefix is read per message so config
// reloads apply immediately; auth may be nil when key auth is not wired.
func NewHandler(registry *Registry, prefix func() string, auth *botauth.Manager, log *logger.Logger) *Handler {
	if prefix == nil {
		prefix = func() string { return DefaultPrefix }
	}
	return &Handler{
		registry: registry,
		prefix:   prefix,
		auth:     auth,
		log:      log.WithComponent("command"),
	}
}

// HandleMessage runs the command carried by ev, if any, and returns the
// reply as a send API call addressed at the originating chat. A nil
// return means the frame is not a command reply and forwards as usual.
func (h *Handler) HandleMessage(ctx context.Context, ev *onebot.Event) *onebot.APIRequest {
	if ev == nil || ev.PostType() != "message" {
		return nil
	}
	prefix := h.prefix()
	if prefix == "" {
		prefix = DefaultPrefix
	}
	text := util.SanitizeString(messageText(ev))
	if !strings.HasPrefix(text, prefix) {
		return nil
	}
	rest := strings.TrimSpace(text[len(prefix):])
	if rest == "" {
		return nil
	}

	parts := strings.Fields(rest)
	name, args := parts[0], parts[1:]
	botID := ev.SelfID()

	reply := h.execute(ctx, ev, prefix, botID, name, args)
	if reply == "" {
		return nil
	}
	req := Reply(ev, reply)
	if req == nil {
		h.log.Warn("Command reply has no addressable chat", logger.Fields(
			"command", name,
			"bot_id", botID,
		))
	}
	return req
}

func (h *Handler) execute(ctx context.Context, ev *onebot.Event, prefix, botID, name string, args []string) string {
	cmd, ok := h.registry.Resolve(name)
	if !ok {
		return fmt.Sprintf("未知指令: %s\n发送 %shelp 查看可用指令", name, prefix)
	}
	if !cmd.AlwaysAllow && h.auth != nil && h.auth.Enabled() && !h.auth.IsAuthenticated(ctx, botID) {
		return fmt.Sprintf("该Bot尚未通过密钥验证，请先发送 %sauth 完成验证", prefix)
	}

	req := &Request{
		Event:   ev,
		BotID:   botID,
		Name:    cmd.Name,
		Args:    args,
		RawArgs: strings.Join(args, " "),
		Prefix:  prefix,
	}
	reply, err := cmd.Execute(ctx, req)
	if err != nil {
		h.log.Error("Command failed", logger.ErrorFields(cmd.Name, err))
		return "指令执行失败: " + err.Error()
	}
	h.log.Info("Command executed", logger.Fields(
		"command", cmd.Name,
		"bot_id", botID,
	))
	return reply
}

// Reply builds the send API call that answers ev in its own chat: group
// messages answer with send_group_msg, everything else with
// send_private_msg. Returns nil when the event names no chat to answer.
func Reply(ev *onebot.Event, text string) *onebot.APIRequest {
	message := []onebot.Segment{onebot.Text(text)}
	if ev.MessageType() == "group" {
		if groupID, ok := ev.Get("group_id"); ok {
			return &onebot.APIRequest{
				Action: "send_group_msg",
				Params: map[string]any{"group_id": groupID, "message": message},
			}
		}
	}
	if userID, ok := ev.Get("user_id"); ok {
		return &onebot.APIRequest{
			Action: "send_private_msg",
			Params: map[string]any{"user_id": userID, "message": message},
		}
	}
	return nil
}

// messageText extracts the plain text a user typed. raw_message is what
// OneBot implementations fill for real chat input; the segment render is
// the fallback for frames that omit it.
func messageText(ev *onebot.Event) string {
	if raw, ok := ev.Get("raw_message"); ok {
		if s := onebot.Stringify(raw); s != "" {
			return s
		}
	}
	return onebot.RawMessage(ev.Message())
}
