package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Anyuluo996/BotShepherd/command"
	"github.com/Anyuluo996/BotShepherd/config"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/observability"
	"github.com/Anyuluo996/BotShepherd/onebot"
	"github.com/Anyuluo996/BotShepherd/store"
)

const (
	// closeTimeout caps how long teardown waits for pumps to drain.
	closeTimeout = 3 * time.Second

	// counterInterval is how often session throughput is pushed to the
	// dashboard feed.
	counterInterval = 30 * time.Second

	// logPayloadLimit caps frame payloads in log lines; base64 image
	// sends otherwise explode the log.
	logPayloadLimit = 200
)

// forwardedHeaders are copied from the client's upgrade request onto
// target dials. NoneBot backends refuse connections without X-Self-ID.
var forwardedHeaders = []string{"Authorization", "X-Self-ID", "X-Client-Role", "User-Agent"}

// sakoyaSkipFrames lists client traffic a sakoya backend never receives;
// it only consumes API calls and message events.
var sakoyaSkipFrames = map[string]struct{}{
	"lifecycle":        {},
	"_connect":         {},
	"get_login_info":   {},
	"get_status":       {},
	"get_version_info": {},
}

// session proxies one connected bot client to its configured targets.
// The client read loop runs on the accepting handler's goroutine; each
// target gets its own pump goroutine.
type session struct {
	p       *Proxy
	id      string
	conf    *config.ConnectionConfig
	client  *websocket.Conn
	headers http.Header
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	targets []*target
	echoes  *echoCache

	// firstFrame is the lifecycle event the bot sends on connect, kept
	// for replay when a target reconnects. Set once before any pump starts.
	firstFrame []byte

	writeMu sync.Mutex

	selfMu sync.Mutex
	selfID string

	received atomic.Int64
	sent     atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	reason    string
	wg        sync.WaitGroup
	done      chan struct{}
}

func newSession(p *Proxy, id string, conf *config.ConnectionConfig, client *websocket.Conn, headers http.Header) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		p:       p,
		id:      id,
		conf:    conf,
		client:  client,
		headers: headers,
		log:     p.log.WithFields(logger.Fields("connection", id)),
		ctx:     ctx,
		cancel:  cancel,
		selfID:  headers.Get("X-Self-ID"),
		done:    make(chan struct{}),
	}
	s.echoes = newEchoCache(s.log)
	s.targets = make([]*target, len(conf.TargetEndpoints))
	for i, endpoint := range conf.TargetEndpoints {
		s.targets[i] = newTarget(i+1, endpoint)
	}
	return s
}

// run drives the session to completion and blocks until teardown is done.
func (s *session) run() {
	start := time.Now()
	s.log.Info("Client connected", logger.Fields(
		"remote", s.client.RemoteAddr().String(),
		"targets", len(s.targets),
	))
	if s.p.metrics != nil {
		s.p.metrics.SessionStarted(s.ctx, s.id)
	}

	err := s.serve()
	reason := "client disconnected"
	if err != nil {
		reason = err.Error()
	}
	s.close(reason)
	s.wg.Wait()
	s.p.unregister(s)
	if s.p.metrics != nil {
		s.p.metrics.SessionEnded(context.Background(), s.id)
	}
	s.p.feed.SessionDown(s.id, s.reason)
	s.log.Info("Session closed", logger.Fields(
		"reason", s.reason,
		"received", s.received.Load(),
		"sent", s.sent.Load(),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	))
	close(s.done)
}

func (s *session) serve() error {
	// The first frame is the lifecycle event; Yunzai-style backends need
	// it to register the account, so targets are dialed only after it
	// arrives and it is replayed on every target reconnect.
	_, first, err := s.client.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading first frame: %w", err)
	}
	s.firstFrame = first

	s.connectTargets()
	s.handleClientFrame(first)
	s.p.feed.SessionUp(s.id, s.currentSelfID())

	for _, t := range s.targets {
		if t.endpoint.Disabled {
			continue
		}
		s.wg.Add(1)
		go s.runTarget(t)
	}
	s.wg.Add(1)
	go s.publishCounters()

	for {
		_, raw, err := s.client.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return fmt.Errorf("client read: %w", err)
		}
		s.handleClientFrame(raw)
	}
}

// connectTargets dials every enabled endpoint concurrently. Failures are
// not fatal; the per-target loop keeps retrying in the background.
// Disabled endpoints keep their slot so indexes stay stable.
func (s *session) connectTargets() {
	var wg sync.WaitGroup
	for _, t := range s.targets {
		if t.endpoint.Disabled {
			s.log.Info("Target disabled, slot kept", logger.Fields("target", t.index))
			continue
		}
		wg.Add(1)
		go func(t *target) {
			defer wg.Done()
			conn, err := s.dial(t)
			if err != nil {
				s.log.Error("Target connect failed", logger.Fields(
					"target", t.index, "url", t.endpoint.URL, "error", err.Error(),
				))
				return
			}
			if !s.adopt(t, conn) {
				return
			}
			s.log.Info("Connected to target", logger.Fields("target", t.index, "url", t.endpoint.URL))
			s.p.feed.TargetState(s.id, t.index, true)
		}(t)
	}
	wg.Wait()
}

// handleClientFrame processes one frame from the bot: account tracking,
// persistence, command dispatch, then fan-out or response routing.
func (s *session) handleClientFrame(raw []byte) {
	ev, err := onebot.Parse(raw)
	if err != nil {
		s.log.Warn("Non-JSON client frame dropped", logger.Fields("payload", truncate(string(raw))))
		return
	}
	s.received.Add(1)
	s.trackSelfID(ev)

	if ev.Echo() != "" && ev.Kind() == onebot.KindAPIResponse {
		s.routeAPIResponse(ev)
		return
	}

	s.record(store.DirectionRecv, ev)

	if s.p.commands != nil {
		if reply := s.p.commands.HandleMessage(s.ctx, ev); reply != nil {
			// Command frames stay between the bot and the proxy.
			s.sendProxyRequest(reply)
			return
		}
	}

	s.broadcast(ev, raw)
}

// routeAPIResponse returns an action reply to whichever side issued the
// call, with the original echo restored. Successful sends are recorded
// as outbound message history. Replies nobody is waiting for are dropped.
func (s *session) routeAPIResponse(ev *onebot.Event) {
	key := ev.Echo()
	call, ok := s.echoes.take(key)

	if ev.APISuccess() && ev.Data() != nil {
		if ok && call.request != nil {
			extra := map[string]any{}
			if id, present := ev.Data()["message_id"]; present {
				extra["message_id"] = id
			}
			if sent := onebot.MessageSent(call.request, s.currentSelfID(), extra); sent != nil {
				s.record(store.DirectionSend, sent)
			}
		}
	} else {
		s.logFailedCall(ev, call)
		s.record(store.DirectionRecv, ev)
	}

	index, echo := 0, ""
	if ok {
		index, echo = call.targetIndex, call.originalEcho
	} else {
		// The cache entry may have been swept; the index prefix still
		// identifies the origin.
		idx, original, parsed := onebot.ParseEcho(key)
		if !parsed {
			s.log.Debug("API response matches no pending call, dropped", logger.Fields("echo", key))
			if s.p.metrics != nil {
				s.p.metrics.RecordDropped(s.ctx, s.id, "unmatched_response")
			}
			return
		}
		index, echo = idx, original
	}

	if index == 0 {
		// The proxy's own call; nothing upstream to notify.
		return
	}

	ev.Set("echo", echo)
	payload, err := ev.Marshal()
	if err != nil {
		s.log.Error("API response re-encode failed", logger.ErrorFields("marshal", err))
		return
	}
	if err := s.targetWrite(index, payload); err != nil {
		s.log.Warn("API response delivery failed", logger.Fields("target", index, "error", err.Error()))
		return
	}
	if s.p.metrics != nil {
		s.p.metrics.RecordAPIResponseRouted(s.ctx, s.id)
	}
}

// handleTargetFrame processes one frame read from a target. API requests
// are relayed to the client with a rewritten echo; everything else
// crosses unchanged.
func (s *session) handleTargetFrame(t *target, raw []byte) {
	ev, err := onebot.Parse(raw)
	if err != nil {
		s.log.Warn("Non-JSON target frame dropped", logger.Fields("target", t.index, "payload", truncate(string(raw))))
		return
	}

	if ev.Kind() == onebot.KindAPIRequest {
		if ev.Echo() == "" {
			// Fire-and-forget send: no response will correlate, so the
			// outbound message is recorded now.
			if sent := onebot.MessageSent(ev, s.currentSelfID(), nil); sent != nil {
				s.record(store.DirectionSend, sent)
			}
			s.writeClient(raw)
			return
		}
		s.forwardAPIRequest(t.index, ev)
		return
	}

	s.writeClient(raw)
}

// forwardAPIRequest relays an action call to the client on behalf of a
// target, or of the proxy itself at index 0. The echo is rewritten to
// carry the origin index and the original call is cached for response
// routing.
func (s *session) forwardAPIRequest(index int, ev *onebot.Event) {
	ctx, span := observability.StartSpan(s.ctx, observability.SpanAPICall)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrConnectionID, s.id)
	observability.SetSpanAttribute(ctx, observability.AttrTargetIndex, index)

	echo := ev.Echo()
	composed := onebot.ComposeEcho(index, echo)
	s.echoes.register(composed, &pendingCall{
		request:      ev,
		targetIndex:  index,
		originalEcho: echo,
	})
	ev.Set("echo", composed)

	payload, err := ev.Marshal()
	if err != nil {
		observability.SetSpanError(ctx, err)
		s.log.Error("API request re-encode failed", logger.ErrorFields("marshal", err))
		return
	}
	s.writeClient(payload)
	if s.p.metrics != nil {
		s.p.metrics.RecordAPICall(ctx, s.id, ev.Action())
	}
}

// sendProxyRequest issues an API call on the proxy's own behalf, index 0
// in the echo scheme. The response is consumed internally.
func (s *session) sendProxyRequest(req *onebot.APIRequest) {
	if req.Echo == "" {
		req.Echo = uuid.NewString()
	}
	ev := onebot.FromMap(map[string]any{
		"action": req.Action,
		"params": req.Params,
		"echo":   req.Echo,
	})
	s.forwardAPIRequest(0, ev)
}

// broadcast fans an event out to every connected target. Disabled slots
// are skipped, and sakoya backends never see meta events or handshake
// actions.
func (s *session) broadcast(ev *onebot.Event, raw []byte) {
	ctx, span := observability.StartSpan(s.ctx, observability.SpanEventForward)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrConnectionID, s.id)
	if id := ev.SelfID(); id != "" {
		observability.SetSpanAttribute(ctx, observability.AttrSelfID, id)
	}

	skipSakoya := skipForSakoya(ev)
	for _, t := range s.targets {
		if t.endpoint.Disabled {
			continue
		}
		if t.sakoya && skipSakoya {
			continue
		}
		if err := t.write(raw); err != nil {
			if err != errTargetOffline {
				s.log.Warn("Target write failed", logger.Fields("target", t.index, "error", err.Error()))
			}
			continue
		}
		if s.p.metrics != nil {
			s.p.metrics.RecordEventForwarded(ctx, s.id, t.index)
		}
	}
}

func skipForSakoya(ev *onebot.Event) bool {
	if ev.IsMetaEvent() {
		return true
	}
	_, skip := sakoyaSkipFrames[ev.Action()]
	return skip
}

// writeClient sends one frame to the bot. Writes are serialized; target
// pumps and the client loop all deliver through here.
func (s *session) writeClient(data []byte) {
	s.writeMu.Lock()
	err := s.client.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		if !s.closed.Load() {
			s.log.Warn("Client write failed", logger.ErrorFields("write", err))
		}
		return
	}
	s.sent.Add(1)
}

func (s *session) targetWrite(index int, data []byte) error {
	if index < 1 || index > len(s.targets) {
		return fmt.Errorf("target %d out of range", index)
	}
	return s.targets[index-1].write(data)
}

// trackSelfID follows the account the client reports. Neither header
// registration nor lifecycle replay survives an account switch, so a
// change is called out loudly.
func (s *session) trackSelfID(ev *onebot.Event) {
	id := ev.SelfID()
	if id == "" {
		return
	}
	s.selfMu.Lock()
	defer s.selfMu.Unlock()
	if s.selfID != "" && s.selfID != id {
		s.log.Warn("Client account switched, restart the connection to re-register targets", logger.Fields(
			"old", s.selfID, "new", id,
		))
	}
	s.selfID = id
}

func (s *session) currentSelfID() string {
	s.selfMu.Lock()
	defer s.selfMu.Unlock()
	return s.selfID
}

// record hands one processed frame to the archiver. Enqueue never
// blocks, so forwarding latency does not depend on the database.
func (s *session) record(direction string, ev *onebot.Event) {
	if s.p.recorder == nil {
		return
	}
	raw, err := ev.Marshal()
	if err != nil {
		s.log.Error("Record encode failed", logger.ErrorFields("marshal", err))
		return
	}
	s.p.recorder.Enqueue(&store.MessageRecord{
		ConnectionID: s.id,
		Direction:    direction,
		PostType:     ev.PostType(),
		MessageType:  ev.MessageType(),
		SelfID:       ev.SelfID(),
		UserID:       ev.UserID(),
		GroupID:      ev.GroupID(),
		Raw:          string(raw),
	})
}

// logFailedCall reports a failed API call together with the request that
// caused it, payloads truncated.
func (s *session) logFailedCall(ev *onebot.Event, call *pendingCall) {
	if ev.Kind() != onebot.KindAPIResponse || call == nil || call.request == nil {
		return
	}
	request, err := call.request.Marshal()
	if err != nil {
		return
	}
	retcode, _ := ev.Retcode()
	s.log.Warn("API call failed", logger.Fields(
		"request", truncate(string(request)),
		"status", ev.Status(),
		"retcode", retcode,
	))
}

// publishCounters pushes throughput numbers to the dashboard feed while
// the session lives, and once more at teardown.
func (s *session) publishCounters() {
	defer s.wg.Done()
	ticker := time.NewTicker(counterInterval)
	defer ticker.Stop()
	var lastReceived, lastSent int64
	for {
		select {
		case <-s.ctx.Done():
			s.p.feed.Counters(s.id, s.received.Load(), s.sent.Load())
			return
		case <-ticker.C:
			received, sent := s.received.Load(), s.sent.Load()
			if received == lastReceived && sent == lastSent {
				continue
			}
			lastReceived, lastSent = received, sent
			s.p.feed.Counters(s.id, received, sent)
		}
	}
}

// close tears the session down once; later calls keep the first reason.
func (s *session) close(reason string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		s.closed.Store(true)
		s.cancel()

		deadline := time.Now().Add(time.Second)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.client.WriteControl(websocket.CloseMessage, message, deadline)
		s.client.Close()

		for _, t := range s.targets {
			t.clear()
		}
	})
}

// stop closes the session and waits for teardown, bounded by closeTimeout.
func (s *session) stop(reason string) {
	s.close(reason)
	select {
	case <-s.done:
	case <-time.After(closeTimeout):
		s.log.Warn("Session close timed out")
	}
}

func (s *session) status() command.SessionStatus {
	online := 0
	for _, t := range s.targets {
		if t.online() {
			online++
		}
	}
	return command.SessionStatus{
		ConnectionID:  s.id,
		ClientOnline:  !s.closed.Load(),
		TargetsOnline: online,
		TargetsTotal:  len(s.targets),
		Received:      s.received.Load(),
		Sent:          s.sent.Load(),
	}
}

// captureHeaders keeps the subset of upgrade headers that target dials
// forward.
func captureHeaders(h http.Header) http.Header {
	out := http.Header{}
	for _, name := range forwardedHeaders {
		if value := h.Get(name); value != "" {
			out.Set(name, value)
		}
	}
	return out
}

func truncate(payload string) string {
	if len(payload) <= logPayloadLimit {
		return payload
	}
	return fmt.Sprintf("%s...[total length: %d]", payload[:logPayloadLimit], len(payload))
}

func sortStatuses(statuses []command.SessionStatus) {
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ConnectionID < statuses[j].ConnectionID
	})
}
