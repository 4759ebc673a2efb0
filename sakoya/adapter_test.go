package sakoya

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/onebot"
)

// newTestConn dials a local WebSocket server and returns the adapter on
// the dialing side plus the raw backend socket on the server side.
func newTestConn(t *testing.T) (*Conn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	backendCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		backendCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/TestBot"
	client, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { client.Close() })

	var backend *websocket.Conn
	select {
	case backend = <-backendCh:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never connected")
	}
	t.Cleanup(func() { backend.Close() })

	return Wrap(client, BotIDFromURL(wsURL), logger.NewDefault("sakoya-test")), backend
}

func recvFrame(t *testing.T, ws *websocket.Conn) []byte {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return data
}

func TestWriteFrameConvertsMessageEvent(t *testing.T) {
	conn, backend := newTestConn(t)

	frame := `{"post_type":"message","message_type":"group","self_id":11,"user_id":22,"group_id":33,"message_id":44,"sender":{"nickname":"n"},"message":[{"type":"text","data":{"text":"ping"}}]}`
	if err := conn.WriteFrame([]byte(frame)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	var mr MessageReceive
	if err := json.Unmarshal(recvFrame(t, backend), &mr); err != nil {
		t.Fatalf("backend frame not a MessageReceive: %v", err)
	}
	if mr.BotID != "TestBot" {
		t.Errorf("bot_id = %q, want TestBot from the dial path", mr.BotID)
	}
	if mr.UserType != "group" || mr.GroupID != "33" {
		t.Errorf("target = %q/%q", mr.UserType, mr.GroupID)
	}
	if len(mr.Content) != 1 || mr.Content[0].Data != "ping" {
		t.Errorf("content = %+v", mr.Content)
	}
}

func TestWriteFrameDropsMetaEvents(t *testing.T) {
	conn, backend := newTestConn(t)

	if err := conn.WriteFrame([]byte(`{"post_type":"meta_event","meta_event_type":"heartbeat"}`)); err != nil {
		t.Fatalf("WriteFrame(meta): %v", err)
	}
	if err := conn.WriteFrame([]byte(`{"post_type":"message","message_type":"private","message":[{"type":"text","data":{"text":"after"}}]}`)); err != nil {
		t.Fatalf("WriteFrame(message): %v", err)
	}

	// Frames are ordered; if the heartbeat had been forwarded it would
	// arrive before the converted message.
	var mr MessageReceive
	if err := json.Unmarshal(recvFrame(t, backend), &mr); err != nil {
		t.Fatalf("first backend frame not a MessageReceive: %v", err)
	}
	if len(mr.Content) != 1 || mr.Content[0].Data != "after" {
		t.Errorf("content = %+v, want the message sent after the heartbeat", mr.Content)
	}
}

func TestWriteFramePassesResponsesThrough(t *testing.T) {
	conn, backend := newTestConn(t)

	frame := []byte(`{"status":"ok","retcode":0,"data":{"message_id":9},"echo":"abc"}`)
	if err := conn.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	if got := recvFrame(t, backend); string(got) != string(frame) {
		t.Errorf("backend got %s, want unmodified response", got)
	}
}

func TestWriteFramePassesPassthroughActions(t *testing.T) {
	conn, backend := newTestConn(t)

	frame := []byte(`{"action":"get_login_info"}`)
	if err := conn.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	if got := recvFrame(t, backend); string(got) != string(frame) {
		t.Errorf("backend got %s, want unmodified action", got)
	}
}

func TestWriteFrameConvertsSendAPI(t *testing.T) {
	conn, backend := newTestConn(t)

	frame := `{"action":"send_group_msg","params":{"group_id":33,"message":[{"type":"text","data":{"text":"out"}}]}}`
	if err := conn.WriteFrame([]byte(frame)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	var ms MessageSend
	if err := json.Unmarshal(recvFrame(t, backend), &ms); err != nil {
		t.Fatalf("backend frame not a MessageSend: %v", err)
	}
	if ms.TargetType != "group" || ms.TargetID != "33" {
		t.Errorf("target = %q/%q, want group/33", ms.TargetType, ms.TargetID)
	}
	if len(ms.Content) != 1 || ms.Content[0].Data != "out" {
		t.Errorf("content = %+v", ms.Content)
	}
}

func TestReadFrameConvertsMessageSend(t *testing.T) {
	conn, backend := newTestConn(t)

	payload := `{"bot_id":"Bot","bot_self_id":"11","msg_id":"","target_type":"direct","target_id":"22","content":[{"type":"text","data":"reply text"}]}`
	if err := backend.WriteMessage(websocket.BinaryMessage, []byte(payload)); err != nil {
		t.Fatalf("backend write: %v", err)
	}

	conn.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	ev, err := onebot.Parse(out)
	if err != nil {
		t.Fatalf("ReadFrame output not JSON: %v", err)
	}
	if ev.Kind() != onebot.KindAPIRequest || ev.Action() != "send_private_msg" {
		t.Errorf("converted frame = %s", out)
	}
	if ev.Echo() == "" {
		t.Error("converted request carries no echo")
	}
}

func TestReadFramePassesUnknownJSONThrough(t *testing.T) {
	conn, backend := newTestConn(t)

	payload := `{"status":"ok","retcode":0,"echo":"1_x"}`
	if err := backend.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("backend write: %v", err)
	}

	conn.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(out) != payload {
		t.Errorf("ReadFrame() = %s, want passthrough", out)
	}
}

func TestReplyCacheEviction(t *testing.T) {
	rc := newReplyCache(3)
	for i := 0; i < 4; i++ {
		rc.put(fmt.Sprintf("m%d", i), []any{})
	}

	if _, ok := rc.get("m0"); ok {
		t.Error("oldest entry survived past the cache bound")
	}
	if _, ok := rc.get("m3"); !ok {
		t.Error("newest entry missing")
	}
}

func TestReplyCacheCompleteSplicesQuotedImages(t *testing.T) {
	rc := newReplyCache(replyCacheSize)

	quoted := parseEvent(t, `{"post_type":"message","message_id":100,"message":[{"type":"image","data":{"file":"x.image","url":"http://x/1.png"}}]}`)
	rc.complete(quoted)

	reply := parseEvent(t, `{"post_type":"message","message_id":101,"message":[{"type":"reply","data":{"id":100}},{"type":"text","data":{"text":"rate"}}]}`)
	rc.complete(reply)

	segs := onebot.Segments(reply.Message())
	if len(segs) != 2 {
		t.Fatalf("message = %+v, want image plus text", segs)
	}
	if segs[0].Type != "image" || onebot.Stringify(segs[0].Data["url"]) != "http://x/1.png" {
		t.Errorf("first segment = %+v, want quoted image first", segs[0])
	}
	if segs[1].Type != "text" {
		t.Errorf("second segment = %+v, reply should be gone", segs[1])
	}
}

func TestReplyCacheCompleteUnknownQuote(t *testing.T) {
	rc := newReplyCache(replyCacheSize)

	reply := parseEvent(t, `{"post_type":"message","message_id":101,"message":[{"type":"reply","data":{"id":"999"}},{"type":"text","data":{"text":"hm"}}]}`)
	rc.complete(reply)

	segs := onebot.Segments(reply.Message())
	if len(segs) != 2 || segs[0].Type != "reply" {
		t.Errorf("message = %+v, want untouched", segs)
	}
}
