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

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/agent"
	"github.com/mohammad-safakhou/copydesk/internal/llm"
	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
	"github.com/mohammad-safakhou/copydesk/internal/store"
)

// Run wires the pipeline and serves the HTTP API until the listener stops.
func Run(cfg *config.Config, addr string) error {
	e, err := buildServer(cfg)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Address
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func buildServer(cfg *config.Config) (*echo.Echo, error) {
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
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	ctx := context.Background()

	// Pipeline core (top-level DI: agents and tools are built once and
	// injected into the orchestrator).
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	tools, err := agent.NewToolSet(cfg.Tools)
	if err != nil {
		return nil, err
	}
	agents, err := agent.NewAgents(cfg, provider, tools)
	if err != nil {
		return nil, err
	}
	tracker := pipeline.NewTracker()
	orch, err := pipeline.NewOrchestrator(agents, tracker, cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	// Optional Postgres archive.
	var st *store.Store
	if cfg.Storage.Postgres.Configured() {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
			log.Printf("warn: migrations: %v", err)
		}
		st, err = store.New(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
	}

	api := e.Group("/api")

	secret := []byte(cfg.Server.JWTSecret)
	if cfg.Server.AuthRequired {
		if len(secret) == 0 {
			return nil, fmt.Errorf("jwt secret not configured (server.jwt_secret)")
		}
		if st == nil {
			return nil, fmt.Errorf("auth requires postgres (storage.postgres)")
		}
		auth := &AuthHandler{Store: st, Secret: secret}
		auth.Register(api.Group("/auth"))
	}

	rh := NewRunsHandler(orch, st)
	rh.Register(api.Group("/runs"), secret, cfg.Server.AuthRequired)

	// Recurring briefs need the archive and the scheduler.
	if st != nil {
		bh := &BriefsHandler{Store: st}
		bh.Register(api.Group("/briefs"), secret, cfg.Server.AuthRequired)

		if cfg.Server.SchedulerEnabled {
			var rdb *redis.Client
			if cfg.Storage.Redis.Configured() {
				rdb = redis.NewClient(&redis.Options{
					Addr:     cfg.Storage.Redis.Addr(),
					Password: cfg.Storage.Redis.Pass,
					DB:       cfg.Storage.Redis.DB,
				})
				if err := rdb.Ping(ctx).Err(); err != nil {
					return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
				}
			}
			sched := &Scheduler{
				Store:    st,
				Orch:     orch,
				Rdb:      rdb,
				Interval: cfg.Server.SchedulerInterval,
				Stop:     make(chan struct{}),
			}
			sched.Start()
		}
	}

	return e, nil
}
