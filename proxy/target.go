package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Anyuluo996/BotShepherd/config"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/resilience"
	"github.com/Anyuluo996/BotShepherd/sakoya"
)

const (
	// handshakeTimeout bounds a single target dial.
	handshakeTimeout = 10 * time.Second

	// Reconnect plan: a burst of quick attempts right after the loss,
	// then a slow probe in case the backend comes back hours later.
	immediateReconnectAttempts = 40
	reconnectInterval          = 3 * time.Second
	longReconnectInterval      = 10 * time.Minute

	// settleDelay gives a freshly reconnected backend time to process
	// the replayed lifecycle frame before regular traffic resumes.
	settleDelay = 5 * time.Second
)

var (
	errTargetOffline    = errors.New("target offline")
	errReconnectAborted = errors.New("reconnect aborted")
)

// targetConn is the frame-level view of a target socket. The sakoya
// adapter satisfies it with protocol conversion in both directions.
type targetConn interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// obConn adapts a raw websocket to targetConn. OneBot implementations
// speak JSON text frames.
type obConn struct {
	ws *websocket.Conn
}

func (c *obConn) WriteFrame(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *obConn) ReadFrame() ([]byte, error) {
	_, raw, err := c.ws.ReadMessage()
	return raw, err
}

func (c *obConn) Close() error {
	return c.ws.Close()
}

// target tracks one forwarding destination. Indexes are 1-based and
// stable for the session's lifetime; index 0 is reserved for the proxy
// itself. The mutex serializes frame writes and guards the connection
// swap done by the reconnect loop.
type target struct {
	index    int
	endpoint *config.TargetEndpoint
	sakoya   bool

	mu   sync.Mutex
	conn targetConn
}

func newTarget(index int, endpoint *config.TargetEndpoint) *target {
	return &target{index: index, endpoint: endpoint, sakoya: endpoint.SakoyaProtocol}
}

func (t *target) current() targetConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *target) online() bool {
	return t.current() != nil
}

// clear closes and detaches the connection, if any.
func (t *target) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// write sends one frame, failing with errTargetOffline when the target
// is not connected.
func (t *target) write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return errTargetOffline
	}
	return t.conn.WriteFrame(data)
}

// adopt installs a freshly dialed connection unless the session closed
// in the meantime, in which case the connection is closed instead.
func (s *session) adopt(t *target, conn targetConn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.closed.Load() {
		conn.Close()
		return false
	}
	t.conn = conn
	return true
}

// dial connects to the target endpoint, forwarding the headers captured
// from the client's upgrade request; the endpoint's own headers win on
// conflict. Sakoya endpoints come back wrapped in the protocol adapter.
func (s *session) dial(t *target) (targetConn, error) {
	header := http.Header{}
	for name, values := range s.headers {
		header[name] = values
	}
	for name, value := range t.endpoint.Headers {
		header.Set(name, value)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}
	if strings.HasPrefix(t.endpoint.URL, "wss://") {
		tlsConf, err := t.endpoint.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("target %d tls: %w", t.index, err)
		}
		dialer.TLSClientConfig = tlsConf
	}

	ws, _, err := dialer.DialContext(s.ctx, t.endpoint.URL, header)
	if err != nil {
		return nil, err
	}
	if t.sakoya {
		return sakoya.Wrap(ws, sakoya.BotIDFromURL(t.endpoint.URL), s.log), nil
	}
	return &obConn{ws: ws}, nil
}

// runTarget owns one target for the session's lifetime: pump frames
// while connected, reconnect when the socket drops, stop when the
// client is gone or the endpoint got disabled.
func (s *session) runTarget(t *target) {
	defer s.wg.Done()
	for {
		conn := t.current()
		if conn == nil {
			if !s.reconnect(t) {
				return
			}
			continue
		}
		s.pump(t, conn)
		t.clear()
		s.p.feed.TargetState(s.id, t.index, false)
		if s.closed.Load() {
			return
		}
		s.log.Warn("Target connection lost", logger.Fields("target", t.index, "url", t.endpoint.URL))
	}
}

// pump reads target frames until the socket errors.
func (s *session) pump(t *target, conn targetConn) {
	for {
		raw, err := conn.ReadFrame()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("Target read ended", logger.Fields("target", t.index, "error", err.Error()))
			}
			return
		}
		s.handleTargetFrame(t, raw)
	}
}

// reconnectSchedule returns the wait before the next dial. The first
// attempts come quickly while an outage is likely brief, then the loop
// drops to a slow probe that runs until the backend returns.
func reconnectSchedule(attempt int) time.Duration {
	if attempt < immediateReconnectAttempts {
		return reconnectInterval
	}
	return longReconnectInterval
}

// reconnect re-establishes the target connection on the fixed schedule:
// immediate attempts first, then slow probing without a cap. It returns
// false when the loop aborted because the session ended or the endpoint
// was disabled. A route reload pauses attempts instead of aborting, so
// surviving sessions pick the loop back up once the reload finishes.
func (s *session) reconnect(t *target) bool {
	err := resilience.RetryFunc(s.ctx, resilience.RetryConfig{
		MaxAttempts: resilience.UnlimitedAttempts,
		Schedule:    reconnectSchedule,
		RetryIf: func(err error) bool {
			return !errors.Is(err, errReconnectAborted)
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			if s.p.metrics != nil {
				s.p.metrics.RecordReconnect(s.ctx, s.id, t.index)
			}
			s.log.Debug("Target reconnect attempt failed", logger.Fields(
				"target", t.index, "attempt", attempt, "retry_in", backoff.String(), "error", err.Error(),
			))
		},
	}, func() error {
		if s.closed.Load() {
			return fmt.Errorf("%w: client disconnected", errReconnectAborted)
		}
		if s.targetDisabled(t) {
			return fmt.Errorf("%w: endpoint disabled", errReconnectAborted)
		}
		if s.p.reloading.Load() {
			return errors.New("routes reloading")
		}
		conn, err := s.dial(t)
		if err != nil {
			return err
		}
		if !s.adopt(t, conn) {
			return fmt.Errorf("%w: client disconnected", errReconnectAborted)
		}
		return nil
	})
	if err != nil {
		s.log.Info("Target reconnect stopped", logger.Fields("target", t.index, "reason", err.Error()))
		return false
	}

	s.log.Info("Target reconnected", logger.Fields("target", t.index, "url", t.endpoint.URL))
	s.p.feed.TargetState(s.id, t.index, true)

	// Plain OneBot backends need the lifecycle frame replayed to
	// re-register the bot account, then a settle pause. Sakoya targets
	// resume immediately.
	if !t.sakoya && len(s.firstFrame) > 0 {
		if err := t.write(s.firstFrame); err != nil {
			s.log.Warn("Lifecycle replay failed", logger.Fields("target", t.index, "error", err.Error()))
			t.clear()
			return true
		}
		select {
		case <-time.After(settleDelay):
		case <-s.ctx.Done():
			return false
		}
	}
	return true
}

// targetDisabled re-reads the live configuration; the endpoint may have
// been disabled or removed since the session started.
func (s *session) targetDisabled(t *target) bool {
	conf, ok := s.p.cfg.Connection(s.id)
	if !ok || !conf.Enabled {
		return true
	}
	if t.index > len(conf.TargetEndpoints) {
		return true
	}
	return conf.TargetEndpoints[t.index-1].Disabled
}
