package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/mohammad-safakhou/researcher/config"
	agentcore "github.com/mohammad-safakhou/researcher/internal/agent/core"
	agenttele "github.com/mohammad-safakhou/researcher/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researcher/internal/docstore"
	"github.com/mohammad-safakhou/researcher/internal/mcpclient"
	"github.com/mohammad-safakhou/researcher/internal/runstore"
	"github.com/mohammad-safakhou/researcher/tools"
)

// Run wires every dependency and serves the HTTP API until the process exits.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if !cfg.Storage.Postgres.Enabled() {
		return fmt.Errorf("postgres not configured (storage.postgres.url or host/dbname)")
	}
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	ctx := context.Background()
	st, err := runstore.New(ctx, dsn)
	if err != nil {
		return err
	}

	index, err := docstore.OpenIndex(cfg.Storage.File.IndexDir)
	if err != nil {
		return err
	}
	docs := docstore.NewStore(cfg.Storage.File.DataDir, index)

	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}
	cache := runstore.NewReportCache(rdb, cfg.Storage.Redis.CacheTTL)

	llm, err := agentcore.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}
	toolProvider, err := NewToolProvider(ctx, cfg, docs)
	if err != nil {
		return err
	}
	tele := agenttele.NewTelemetry(cfg.Telemetry)
	orch := agentcore.NewOrchestrator(cfg, llm, docstore.NewAgentStore(docs), toolProvider, tele)
	defer orch.Close()

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(AuthMiddleware(auth.Secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"user_id": c.Get("user_id").(string)})
	})

	rh := &RunsHandler{Store: st, Orch: orch, Cache: cache, Logger: log.New(log.Writer(), "[RUNS] ", log.LstdFlags)}
	rh.Register(api.Group("/runs"), auth.Secret)

	th := &TopicsHandler{Docs: docs, Index: index, Cache: cache}
	th.Register(api.Group("/topics"), auth.Secret)
	th.RegisterSearch(api.Group("/search"), auth.Secret)

	sh := &SchedulesHandler{Store: st}
	sh.Register(api.Group("/schedules"), auth.Secret)

	sched := &Scheduler{
		Store:  st,
		Runs:   rh,
		Rdb:    rdb,
		Stop:   make(chan struct{}),
		Logger: log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
	sched.Start()

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10002"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// NewToolProvider builds the orchestrator's tool surface. When an MCP command
// is configured the tools run in that subprocess; otherwise they run
// in-process against the local document store.
func NewToolProvider(ctx context.Context, cfg *appconfig.Config, docs *docstore.Store) (agentcore.ToolProvider, error) {
	if cfg.Tools.MCPCommand != "" {
		return mcpclient.Start(ctx, cfg.Tools.MCPCommand, cfg.Tools.MCPArgs...)
	}
	return tools.NewRegistry(cfg.Tools, docs)
}
