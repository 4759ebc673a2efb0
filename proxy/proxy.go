package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Anyuluo996/BotShepherd/command"
	"github.com/Anyuluo996/BotShepherd/component"
	"github.com/Anyuluo996/BotShepherd/config"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/observability"
	"github.com/Anyuluo996/BotShepherd/sse"
	"github.com/Anyuluo996/BotShepherd/store"
	"github.com/Anyuluo996/BotShepherd/version"
)

// upgrader accepts client websockets. Bots connect from daemons and
// containers, not browsers, so origin checks do not apply.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Recorder receives each processed frame for archival. Implementations
// must not block; the forwarding path calls this inline.
type Recorder interface {
	Enqueue(rec *store.MessageRecord)
}

// Proxy accepts bot client websockets and fans each one out to its
// configured targets. Routes on the main port are served through the
// HTTP server's fallback handler; every other port in the route table
// gets a dedicated listener.
type Proxy struct {
	cfg      *config.Manager
	log      *logger.Logger
	metrics  *observability.Metrics
	feed     *sse.Feed
	commands *command.Handler
	recorder Recorder

	mainPort int
	started  time.Time

	// reloading pauses target reconnect attempts while the route table
	// and listeners are being rebuilt.
	reloading atomic.Bool

	mu        sync.RWMutex
	routes    config.RouteTable
	sessions  map[string]*session
	listeners map[int]*portListener
}

// Option configures optional proxy collaborators.
type Option func(*Proxy)

// WithMetrics attaches OpenTelemetry counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Proxy) { p.metrics = m }
}

// WithFeed attaches the dashboard event feed.
func WithFeed(f *sse.Feed) Option {
	return func(p *Proxy) { p.feed = f }
}

// WithRecorder attaches frame archival.
func WithRecorder(r Recorder) Option {
	return func(p *Proxy) { p.recorder = r }
}

// New builds a proxy bound to the loaded configuration. The main port
// comes from the global server config; Handler must be mounted there
// by the caller.
func New(cfg *config.Manager, log *logger.Logger, opts ...Option) *Proxy {
	p := &Proxy{
		cfg:       cfg,
		log:       log.WithComponent("proxy"),
		mainPort:  cfg.Global().Server.Port,
		sessions:  make(map[string]*session),
		listeners: make(map[int]*portListener),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetCommands attaches the command handler. Call before Start; sessions
// read the handler without synchronization.
func (p *Proxy) SetCommands(h *command.Handler) { p.commands = h }

// Name implements component.Component.
func (p *Proxy) Name() string { return "proxy" }

// Start loads the route table and brings up listeners for every routed
// port other than the main one.
func (p *Proxy) Start(ctx context.Context) error {
	p.started = time.Now()

	routes, issues := p.cfg.Routes()
	p.logIssues(issues)

	p.mu.Lock()
	p.routes = routes
	p.mu.Unlock()

	if routes.Count() == 0 {
		p.log.Warn("No enabled connections configured")
	}
	p.openListeners(routes)

	p.log.Info("Proxy started", logger.Fields(
		"routes", routes.Count(),
		"ports", len(routes),
	))
	return nil
}

// Stop shuts down the extra-port listeners and tears down every active
// session. Hijacked websockets survive an http.Server shutdown, so the
// sessions are closed explicitly.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	listeners := p.listeners
	p.listeners = make(map[int]*portListener)
	p.mu.Unlock()

	for _, l := range listeners {
		l.shutdown(ctx)
	}
	for _, s := range p.snapshot() {
		s.stop("server shutting down")
	}
	return nil
}

// Health implements component.Component.
func (p *Proxy) Health(_ context.Context) component.Health {
	p.mu.RLock()
	routes := p.routes.Count()
	active := len(p.sessions)
	p.mu.RUnlock()

	health := component.Health{
		Name:    "proxy",
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d sessions, %d routes", active, routes),
	}
	if routes == 0 {
		health.Status = component.StatusDegraded
		health.Message = "no routes configured"
	}
	return health
}

// Describe implements component.Describable for the startup summary.
func (p *Proxy) Describe() component.Description {
	p.mu.RLock()
	routes := p.routes.Count()
	ports := len(p.routes)
	p.mu.RUnlock()

	return component.Description{
		Name:    "WebSocket Proxy",
		Type:    "proxy",
		Details: fmt.Sprintf("%d routes on %d ports", routes, ports),
		Port:    p.mainPort,
	}
}

// Handler serves main-port websocket upgrades. It is mounted as the
// HTTP server's fallback so admin routes keep precedence.
func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.dispatch(w, r, p.mainPort)
	})
}

// dispatch routes one upgrade request by (port, path). Unroutable
// upgrades are accepted and then closed with a policy-violation code so
// the client sees the reason instead of a bare handshake failure.
func (p *Proxy) dispatch(w http.ResponseWriter, r *http.Request, port int) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.NotFound(w, r)
		return
	}

	p.mu.RLock()
	id, ok := p.routes.Lookup(port, r.URL.Path)
	p.mu.RUnlock()
	if !ok {
		p.log.Warn("No route for path", logger.Fields(
			"port", port,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		))
		if conn, err := upgrader.Upgrade(w, r, nil); err == nil {
			closeWith(conn, websocket.ClosePolicyViolation, fmt.Sprintf("no route for path %s", r.URL.Path))
		}
		return
	}

	conf, ok := p.cfg.Connection(id)
	if !ok || !conf.Enabled {
		p.log.Error("Routed connection has no usable config", logger.Fields("connection", id))
		if conn, err := upgrader.Upgrade(w, r, nil); err == nil {
			closeWith(conn, websocket.CloseInternalServerErr, "connection config missing")
		}
		return
	}

	headers := captureHeaders(r.Header)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		p.log.Warn("WebSocket upgrade failed", logger.ErrorFields("upgrade", err))
		return
	}

	s := newSession(p, id, conf, conn, headers)
	if old := p.register(s); old != nil {
		p.log.Warn("Active session exists - rejecting new connection", logger.Fields(
			"connection", id,
			"existing", old.client.RemoteAddr().String(),
			"rejected", conn.RemoteAddr().String(),
		))
		closeWith(conn, websocket.ClosePolicyViolation, "connection already exists")
		return
	}

	// Blocks for the lifetime of the session; the client read loop runs
	// on this handler goroutine.
	s.run()
}

// register claims the connection ID for s. When a live session already
// holds the ID the new one is refused and the holder returned; a dead
// holder still mid-teardown is reaped first.
func (p *Proxy) register(s *session) *session {
	p.mu.Lock()
	old, exists := p.sessions[s.id]
	if exists && !old.closed.Load() {
		p.mu.Unlock()
		return old
	}
	p.sessions[s.id] = s
	p.mu.Unlock()

	if exists {
		p.log.Info("Reaping dead session", logger.Fields("connection", s.id))
		old.stop("replaced by new connection")
	}
	return nil
}

// unregister drops s from the registry. The identity check keeps a
// replaced session's teardown from removing its successor.
func (p *Proxy) unregister(s *session) {
	p.mu.Lock()
	if p.sessions[s.id] == s {
		delete(p.sessions, s.id)
	}
	p.mu.Unlock()
}

func (p *Proxy) snapshot() []*session {
	p.mu.RLock()
	out := make([]*session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	p.mu.RUnlock()
	return out
}

// Reload rebuilds the route table from the configuration manager,
// reconciles the extra-port listeners and drops sessions whose
// connection no longer routes. Target reconnect loops pause while the
// rebuild runs. Returns the route count and the non-routable
// connections.
func (p *Proxy) Reload(ctx context.Context) (int, []config.RouteIssue, error) {
	p.reloading.Store(true)
	defer p.reloading.Store(false)

	routes, issues := p.cfg.Routes()
	p.logIssues(issues)

	p.mu.Lock()
	p.routes = routes
	stale := make([]*portListener, 0)
	for port, l := range p.listeners {
		if _, keep := routes[port]; !keep && port != p.mainPort {
			stale = append(stale, l)
			delete(p.listeners, port)
		}
	}
	p.mu.Unlock()

	for _, l := range stale {
		p.log.Info("Port removed from routes - stopping listener", logger.Fields("port", l.port))
		l.shutdown(ctx)
	}
	p.openListeners(routes)

	for _, s := range p.snapshot() {
		if !routes.Serves(s.id) {
			s.stop("connection removed from configuration")
		}
	}

	count := routes.Count()
	p.log.Info("Routes reloaded", logger.Fields(
		"routes", count,
		"ports", len(routes),
		"issues", len(issues),
	))
	p.feed.Reload(count)
	return count, issues, nil
}

// openListeners brings up a listener for every routed port that lacks
// one, skipping the main port. A port that cannot be bound is logged
// and skipped; it may be held briefly by an instance shutting down and
// is retried on the next reload.
func (p *Proxy) openListeners(routes config.RouteTable) {
	host := p.cfg.Global().Server.Host
	for port := range routes {
		if port == p.mainPort {
			continue
		}
		p.mu.Lock()
		_, exists := p.listeners[port]
		p.mu.Unlock()
		if exists {
			continue
		}
		l, err := newPortListener(p, host, port)
		if err != nil {
			p.log.Warn("Cannot bind port - skipping listener", logger.Fields(
				"port", port,
				"error", err.Error(),
			))
			continue
		}
		p.mu.Lock()
		p.listeners[port] = l
		p.mu.Unlock()
	}
}

func (p *Proxy) logIssues(issues []config.RouteIssue) {
	for _, issue := range issues {
		p.log.Warn("Connection not routable", logger.Fields(
			"connection", issue.ConnectionID,
			"port", issue.Port,
			"path", issue.Path,
			"reason", issue.Reason,
		))
	}
}

// Statuses reports every active session sorted by connection ID.
func (p *Proxy) Statuses() []command.SessionStatus {
	sessions := p.snapshot()
	statuses := make([]command.SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.status())
	}
	sortStatuses(statuses)
	return statuses
}

// Snapshot feeds the status command and the admin API.
func (p *Proxy) Snapshot() command.StatusSnapshot {
	return command.StatusSnapshot{
		Version:   version.Short(),
		StartedAt: p.started,
		Sessions:  p.Statuses(),
	}
}

// closeWith sends a close frame with a reason before dropping the
// socket, so rejected clients can tell why.
func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	message := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, message, deadline)
	conn.Close()
}
