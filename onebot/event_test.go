package onebot

import (
	"bytes"
	"strings"
	"testing"
)

func mustParse(t *testing.T, frame string) *Event {
	t.Helper()
	ev, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse(%s): %v", frame, err)
	}
	return ev
}

func TestParseRejectsNonObjects(t *testing.T) {
	for _, frame := range []string{`[1,2,3]`, `"hello"`, `42`, `{broken`} {
		if _, err := Parse([]byte(frame)); err == nil {
			t.Errorf("Parse(%s): expected error", frame)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Kind
	}{
		{
			name:  "message event",
			frame: `{"post_type":"message","message_type":"group","user_id":123}`,
			want:  KindEvent,
		},
		{
			name:  "meta event",
			frame: `{"post_type":"meta_event","meta_event_type":"heartbeat"}`,
			want:  KindEvent,
		},
		{
			name:  "api request",
			frame: `{"action":"send_group_msg","params":{"group_id":1},"echo":"e1"}`,
			want:  KindAPIRequest,
		},
		{
			name:  "api response with status",
			frame: `{"status":"ok","retcode":0,"data":{},"echo":"e1"}`,
			want:  KindAPIResponse,
		},
		{
			name:  "api response with retcode only",
			frame: `{"retcode":1400,"echo":"e1"}`,
			want:  KindAPIResponse,
		},
		{
			name:  "echo without status or retcode",
			frame: `{"echo":"e1"}`,
			want:  KindUnknown,
		},
		{
			name:  "post_type wins over action",
			frame: `{"post_type":"message","action":"send_msg"}`,
			want:  KindEvent,
		},
		{
			name:  "empty object",
			frame: `{}`,
			want:  KindUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustParse(t, tt.frame).Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Accessors stringify whatever scalar the peer sent; OneBot
// implementations disagree on whether IDs are numbers or strings.
func TestAccessorsStringify(t *testing.T) {
	ev := mustParse(t, `{"post_type":"message","self_id":3219057931,"user_id":"10001","group_id":987654321,"message_id":-42}`)

	if got := ev.SelfID(); got != "3219057931" {
		t.Errorf("SelfID() = %q, want %q", got, "3219057931")
	}
	if got := ev.UserID(); got != "10001" {
		t.Errorf("UserID() = %q, want %q", got, "10001")
	}
	if got := ev.GroupID(); got != "987654321" {
		t.Errorf("GroupID() = %q, want %q", got, "987654321")
	}
	if got := ev.MessageID(); got != "-42" {
		t.Errorf("MessageID() = %q, want %q", got, "-42")
	}
	if got := ev.MessageType(); got != "" {
		t.Errorf("MessageType() on absent field = %q, want empty", got)
	}
}

func TestMarshalReturnsOriginalBytesWhenUnmodified(t *testing.T) {
	frame := []byte(`{"post_type":"message","self_id":123,"raw_message":"hi"}`)
	ev, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(out, frame) {
		t.Errorf("Marshal() = %s, want original bytes", out)
	}
}

func TestSetForcesReencode(t *testing.T) {
	ev := mustParse(t, `{"action":"send_msg","echo":"abc"}`)
	ev.Set("echo", "2_abc")

	out, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"echo":"2_abc"`) {
		t.Errorf("Marshal() = %s, want rewritten echo", out)
	}
}

// Account IDs above 2^53 would be mangled by a float64 decode; json.Number
// has to carry them through a modify-and-marshal cycle untouched.
func TestLargeIDSurvivesReencode(t *testing.T) {
	ev := mustParse(t, `{"post_type":"message","self_id":9007199254740993}`)
	ev.Set("extra", true)

	out, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), "9007199254740993") {
		t.Errorf("Marshal() = %s, want exact self_id", out)
	}
}

func TestMarshalDoesNotEscapeHTML(t *testing.T) {
	ev := FromMap(map[string]any{"raw_message": "[CQ:image,url=http://x/y?a=1&b=2]"})

	out, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), "a=1&b=2") {
		t.Errorf("Marshal() = %s, want literal ampersand", out)
	}
}

func TestAPISuccess(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  bool
	}{
		{"ok zero", `{"status":"ok","retcode":0,"echo":"e"}`, true},
		{"ok nonzero retcode", `{"status":"ok","retcode":100,"echo":"e"}`, false},
		{"failed status", `{"status":"failed","retcode":0,"echo":"e"}`, false},
		{"missing retcode", `{"status":"ok","echo":"e"}`, false},
		{"not a response", `{"post_type":"message","status":"ok","retcode":0}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustParse(t, tt.frame).APISuccess(); got != tt.want {
				t.Errorf("APISuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetcode(t *testing.T) {
	ev := mustParse(t, `{"status":"ok","retcode":1400,"echo":"e"}`)
	rc, ok := ev.Retcode()
	if !ok || rc != 1400 {
		t.Errorf("Retcode() = %d, %v, want 1400, true", rc, ok)
	}

	ev = mustParse(t, `{"status":"ok","retcode":"bad","echo":"e"}`)
	if _, ok := ev.Retcode(); ok {
		t.Error("Retcode() on string value: expected ok=false")
	}
}

func TestLifecycleDetection(t *testing.T) {
	lifecycle := mustParse(t, `{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect","self_id":123}`)
	if !lifecycle.IsLifecycle() {
		t.Error("IsLifecycle() = false for lifecycle event")
	}
	if !lifecycle.IsMetaEvent() {
		t.Error("IsMetaEvent() = false for lifecycle event")
	}

	heartbeat := mustParse(t, `{"post_type":"meta_event","meta_event_type":"heartbeat"}`)
	if heartbeat.IsLifecycle() {
		t.Error("IsLifecycle() = true for heartbeat")
	}
	if !heartbeat.IsMetaEvent() {
		t.Error("IsMetaEvent() = false for heartbeat")
	}

	message := mustParse(t, `{"post_type":"message","message_type":"private"}`)
	if message.IsMetaEvent() {
		t.Error("IsMetaEvent() = true for message event")
	}
}

func TestDataAndParams(t *testing.T) {
	resp := mustParse(t, `{"status":"ok","retcode":0,"data":{"message_id":456},"echo":"e"}`)
	if data := resp.Data(); data == nil || Stringify(data["message_id"]) != "456" {
		t.Errorf("Data() = %v, want message_id 456", data)
	}

	listResp := mustParse(t, `{"status":"ok","retcode":0,"data":[1,2],"echo":"e"}`)
	if data := listResp.Data(); data != nil {
		t.Errorf("Data() on array payload = %v, want nil", data)
	}

	req := mustParse(t, `{"action":"send_msg","params":{"user_id":1}}`)
	if params := req.Params(); params == nil {
		t.Error("Params() = nil, want map")
	}
}
