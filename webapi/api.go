package webapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Anyuluo996/BotShepherd/auth/jwt"
	"github.com/Anyuluo996/BotShepherd/auth/password"
	"github.com/Anyuluo996/BotShepherd/botauth"
	"github.com/Anyuluo996/BotShepherd/command"
	"github.com/Anyuluo996/BotShepherd/config"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/server/endpoint"
	"github.com/Anyuluo996/BotShepherd/server/middleware"
	"github.com/Anyuluo996/BotShepherd/sse"
	"github.com/Anyuluo996/BotShepherd/store"
)

// loginRatePerMinute caps password attempts per client IP.
const loginRatePerMinute = 10

// ProxyControl is the slice of the proxy the admin API drives.
type ProxyControl interface {
	// Statuses reports the live sessions.
	Statuses() []command.SessionStatus
	// Reload re-reads connection configs and applies the new route table.
	Reload(ctx context.Context) (int, []config.RouteIssue, error)
}

// Deps carries the collaborators the API serves. Config, Proxy and Logger
// are required; the rest may be nil, which disables the matching routes
// with a 503.
type Deps struct {
	Config   *config.Manager
	Proxy    ProxyControl
	BotAuth  *botauth.Manager
	Messages *store.MessageStore
	Stats    *store.StatsStore
	Hub      *sse.Hub
	Logger   *logger.Logger
}

// API implements the admin HTTP surface.
type API struct {
	cfg        *config.Manager
	proxy      ProxyControl
	botAuth    *botauth.Manager
	messages   *store.MessageStore
	stats      *store.StatsStore
	hub        *sse.Hub
	tokens     *jwt.Service[*Claims]
	hasher     password.Hasher
	sessionTTL time.Duration
	log        *logger.Logger
}

// New builds the API. The session token service is derived from the web
// section of the global config, so the JWT secret must already be set
// (the loader generates one on first run).
func New(deps Deps) (*API, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("webapi: config manager is required")
	}
	if deps.Proxy == nil {
		return nil, fmt.Errorf("webapi: proxy control is required")
	}

	web := deps.Config.Global().Web
	ttl, err := time.ParseDuration(web.SessionTTL)
	if err != nil || ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tokens, err := jwt.NewService(&jwt.Config{
		Secret:   web.JWTSecret,
		Issuer:   "botshepherd",
		TokenTTL: ttl,
	}, func() *Claims { return &Claims{} })
	if err != nil {
		return nil, fmt.Errorf("webapi: token service: %w", err)
	}

	return &API{
		cfg:        deps.Config,
		proxy:      deps.Proxy,
		botAuth:    deps.BotAuth,
		messages:   deps.Messages,
		stats:      deps.Stats,
		hub:        deps.Hub,
		tokens:     tokens,
		hasher:     password.NewBcryptHasher(),
		sessionTTL: ttl,
		log:        deps.Logger.WithComponent("webapi"),
	}, nil
}

// Mount registers the /api route tree on the engine. Login is rate
// limited per IP; everything else sits behind token auth.
func (a *API) Mount(engine *gin.Engine) {
	api := engine.Group("/api")
	api.POST("/auth/login", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerMinute: loginRatePerMinute,
	}), a.login)

	authed := api.Group("", middleware.Auth(middleware.AuthConfig{
		TokenValidator: a.tokens.ValidatorFunc(),
	}))
	authed.GET("/connections", a.listConnections)
	authed.PUT("/connections/:id", a.updateConnection)
	authed.DELETE("/connections/:id", a.deleteConnection)
	authed.POST("/reload", a.reload)
	authed.GET("/auth/keys", a.listKeys)
	authed.POST("/auth/keys", a.generateKey)
	authed.GET("/auth/status", a.authStatus)
	authed.DELETE("/auth/bans/:botID", a.clearBan)
	authed.GET("/messages", a.listMessages)
	authed.GET("/stats", a.getStats)
	authed.GET("/events", a.events)
	authed.GET("/metrics", endpoint.Metrics())
}
