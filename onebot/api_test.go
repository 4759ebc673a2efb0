package onebot

import (
	"strings"
	"testing"
)

func TestComposeEcho(t *testing.T) {
	if got := ComposeEcho(3, "req-9"); got != "3_req-9" {
		t.Errorf("ComposeEcho() = %q, want %q", got, "3_req-9")
	}
}

func TestParseEcho(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantIndex int
		wantEcho  string
		wantOK    bool
	}{
		{"simple", "2_abc", 2, "abc", true},
		{"echo with underscores", "1_2_abc", 1, "2_abc", true},
		{"no separator", "abc", 0, "", false},
		{"leading separator", "_abc", 0, "", false},
		{"non numeric prefix", "x_abc", 0, "", false},
		{"zero index", "0_abc", 0, "", false},
		{"negative index", "-1_abc", 0, "", false},
		{"empty original echo", "4_", 4, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, echo, ok := ParseEcho(tt.key)
			if idx != tt.wantIndex || echo != tt.wantEcho || ok != tt.wantOK {
				t.Errorf("ParseEcho(%q) = %d, %q, %v, want %d, %q, %v",
					tt.key, idx, echo, ok, tt.wantIndex, tt.wantEcho, tt.wantOK)
			}
		})
	}
}

func TestParseEchoRoundTrip(t *testing.T) {
	key := ComposeEcho(7, "uuid_with_underscores_1")
	idx, echo, ok := ParseEcho(key)
	if !ok || idx != 7 || echo != "uuid_with_underscores_1" {
		t.Errorf("round trip gave %d, %q, %v", idx, echo, ok)
	}
}

func TestMessageSent(t *testing.T) {
	req := mustParse(t, `{"action":"send_group_msg","params":{"group_id":100,"message":[{"type":"text","data":{"text":"hi"}}]},"echo":"e1"}`)

	ev := MessageSent(req, "3219057931", map[string]any{"message_id": int64(555)})
	if ev == nil {
		t.Fatal("MessageSent() = nil for send action")
	}
	if got := ev.PostType(); got != "message_sent" {
		t.Errorf("post_type = %q, want message_sent", got)
	}
	if got := ev.SelfID(); got != "3219057931" {
		t.Errorf("self_id = %q, want 3219057931", got)
	}
	if got := ev.GroupID(); got != "100" {
		t.Errorf("group_id = %q, want 100", got)
	}
	if got := ev.MessageID(); got != "555" {
		t.Errorf("message_id = %q, want 555", got)
	}
	if got := ev.str("raw_message"); got != "hi" {
		t.Errorf("raw_message = %q, want hi", got)
	}
	sender, _ := ev.Get("sender")
	s, ok := sender.(map[string]any)
	if !ok || s["nickname"] != "BS Bot Send" || s["user_id"] != "3219057931" {
		t.Errorf("sender = %v, want default bot sender", sender)
	}
	if tm, _ := ev.Get("time"); Stringify(tm) == "" {
		t.Error("time field not set")
	}
}

func TestMessageSentKeepsExplicitSender(t *testing.T) {
	req := mustParse(t, `{"action":"send_private_msg","params":{"user_id":1,"message":"yo","sender":{"nickname":"custom"}}}`)

	ev := MessageSent(req, "42", nil)
	sender, _ := ev.Get("sender")
	s, _ := sender.(map[string]any)
	if s == nil || s["nickname"] != "custom" {
		t.Errorf("sender = %v, want the one from params", sender)
	}
}

func TestMessageSentRejectsNonSendActions(t *testing.T) {
	req := mustParse(t, `{"action":"get_login_info","echo":"e1"}`)
	if ev := MessageSent(req, "42", nil); ev != nil {
		t.Errorf("MessageSent() = %v for get_login_info, want nil", ev)
	}
	if ev := MessageSent(nil, "42", nil); ev != nil {
		t.Error("MessageSent(nil) != nil")
	}
}

func TestMessageSentDoesNotMutateRequest(t *testing.T) {
	req := mustParse(t, `{"action":"send_msg","params":{"user_id":1,"message":"x"}}`)

	MessageSent(req, "42", map[string]any{"message_id": 9})
	params := req.Params()
	if _, ok := params["post_type"]; ok {
		t.Error("original request params were mutated")
	}
	if _, ok := params["message_id"]; ok {
		t.Error("extra fields leaked into the original request")
	}
}

func TestAPIRequestMarshal(t *testing.T) {
	out, err := APIRequest{
		Action: "send_private_msg",
		Params: map[string]any{"user_id": 123},
	}.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"action":"send_private_msg"`) {
		t.Errorf("Marshal() = %s, want action field", out)
	}
	if strings.Contains(string(out), "echo") {
		t.Errorf("Marshal() = %s, empty echo should be omitted", out)
	}
}

func TestAPIResponseMarshal(t *testing.T) {
	out, err := APIResponse{Status: "ok", Retcode: 0, Echo: "1_e"}.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"status":"ok"`, `"retcode":0`, `"echo":"1_e"`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("Marshal() = %s, want %s", out, want)
		}
	}
}
