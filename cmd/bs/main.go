// Command bs runs BotShepherd, a one-to-many OneBot v11 WebSocket proxy
// with an embedded admin API. Configuration lives in the config directory
// (generated on first run); flags and BS_ environment variables override it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Anyuluo996/BotShepherd/bootstrap"
	"github.com/Anyuluo996/BotShepherd/botauth"
	"github.com/Anyuluo996/BotShepherd/command"
	"github.com/Anyuluo996/BotShepherd/config"
	"github.com/Anyuluo996/BotShepherd/database"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/observability"
	"github.com/Anyuluo996/BotShepherd/proxy"
	"github.com/Anyuluo996/BotShepherd/server"
	"github.com/Anyuluo996/BotShepherd/sse"
	"github.com/Anyuluo996/BotShepherd/store"
	"github.com/Anyuluo996/BotShepherd/version"
	"github.com/Anyuluo996/BotShepherd/webapi"
)

func main() {
	var (
		configDir   = flag.String("config", "/app/config", "configuration directory")
		dataDir     = flag.String("data", "/app/data", "data directory (database, generated files)")
		logsDir     = flag.String("logs", "/app/logs", "log file directory")
		port        = flag.Int("port", 0, "listen port (overrides server.port)")
		logLevel    = flag.String("log-level", "", "log level (overrides logging.level)")
		showVersion = flag.Bool("version", false, "print version and exit")
		healthcheck = flag.Bool("healthcheck", false, "probe the running service's health endpoint and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("BotShepherd " + version.Full())
		return
	}
	if *healthcheck {
		if err := probeHealth(*port); err != nil {
			fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("ok")
		return
	}

	if err := run(*configDir, *dataDir, *logsDir, *port, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// probeHealth checks the local health endpoint. The container healthcheck
// calls this; the exit status is the whole contract.
func probeHealth(port int) error {
	if port == 0 {
		if v := os.Getenv("BS_SERVER_PORT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				port = n
			}
		}
	}
	if port == 0 {
		port = 5111
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func run(configDir, dataDir, logsDir string, port int, logLevel string) error {
	mgr, err := config.NewManager(configDir, dataDir, logsDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := mgr.Global()
	if port != 0 {
		cfg.Server.Port = port
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	app, err := bootstrap.NewApp("botshepherd", cfg)
	if err != nil {
		return err
	}
	log := app.Logger
	ctx := context.Background()

	// Telemetry providers stay no-ops unless observability.enabled. They
	// shut down after Run returns so stopping components still flush
	// their last metrics.
	var metrics *observability.Metrics
	if cfg.Observability.Enabled {
		tracer, err := observability.InitTracer(ctx, cfg.Observability.TracerConfig(app.Version))
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		meter, err := observability.InitMeter(ctx, cfg.Observability.MeterConfig(app.Version))
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meter.Shutdown(sctx); err != nil {
				log.Warn("Meter shutdown failed", logger.ErrorFields("shutdown", err))
			}
			if err := tracer.Shutdown(sctx); err != nil {
				log.Warn("Tracer shutdown failed", logger.ErrorFields("shutdown", err))
			}
		}()
		if metrics, err = observability.NewMetrics(observability.Meter("botshepherd")); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
	}

	// The database opens before the registry runs so the stores exist for
	// route construction; registering the component keeps Stop and health
	// in the lifecycle.
	dbComp := database.NewComponent(cfg.Database, log).WithAutoMigrate(store.AllModels()...)
	if err := dbComp.Start(ctx); err != nil {
		return err
	}
	if err := app.RegisterComponent(dbComp); err != nil {
		return err
	}

	var (
		messages  *store.MessageStore
		stats     *store.StatsStore
		authStore *store.AuthStore
	)
	if db := dbComp.DB(); db != nil {
		messages = store.NewMessageStore(db)
		stats = store.NewStatsStore(db)
		authStore = store.NewAuthStore(db)
	}

	// The archiver sits between the proxy and the stores; registered
	// after the database so it flushes before the database closes.
	archiver := store.NewArchiver(messages, stats, log)
	if err := app.RegisterComponent(archiver); err != nil {
		return err
	}
	if messages != nil {
		if err := app.RegisterComponent(store.NewSweeper(messages, cfg.Database.KeepDays, log)); err != nil {
			return err
		}
	}

	botAuth := botauth.NewManager(func() botauth.Policy {
		sec := mgr.Global().Security
		return botauth.Policy{
			Enabled:     sec.AuthEnabled,
			MaxAttempts: sec.MaxAttempts,
			BanDuration: time.Duration(sec.BanDuration) * time.Minute,
		}
	}, authStore, log)

	sseComp := sse.NewComponent("/api/events")
	if err := app.RegisterComponent(sseComp); err != nil {
		return err
	}
	feed := sse.NewFeed(sseComp.Hub())
	// Open dashboards hear about shutdown before their stream drops.
	app.OnStop(func(context.Context) error {
		feed.Shutdown()
		return nil
	})

	opts := []proxy.Option{
		proxy.WithFeed(feed),
		proxy.WithRecorder(archiver),
	}
	if metrics != nil {
		opts = append(opts, proxy.WithMetrics(metrics))
	}
	px := proxy.New(mgr, log, opts...)

	// Built-in commands ride the proxied message stream.
	registry := command.NewRegistry()
	if err := command.RegisterBuiltins(registry, botAuth, stats, px.Snapshot); err != nil {
		return err
	}
	prefix := func() string { return mgr.Global().CommandPrefix }
	px.SetCommands(command.NewHandler(registry, prefix, botAuth, log))

	// One port serves the admin API, the system endpoints, and any
	// WebSocket upgrade the route table claims via the fallback.
	srvCfg := server.Config{Host: cfg.Server.Host, Port: cfg.Server.Port}
	srvCfg.ApplyDefaults()
	// Proxied WebSocket sessions and the SSE stream are long-lived;
	// fixed read/write deadlines would sever them.
	srvCfg.ReadTimeout = 0
	srvCfg.WriteTimeout = 0
	srv := server.New(srvCfg, log)

	api, err := webapi.New(webapi.Deps{
		Config:   mgr,
		Proxy:    px,
		BotAuth:  botAuth,
		Messages: messages,
		Stats:    stats,
		Hub:      sseComp.Hub(),
		Logger:   log,
	})
	if err != nil {
		return err
	}
	api.Mount(srv.GinEngine())
	srv.SetFallback(px.Handler())
	srv.ApplyDefaults("botshepherd", app.Components.HealthAll, metrics)

	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}
	if err := app.RegisterComponent(px); err != nil {
		return err
	}

	return app.Run(ctx)
}
