// Package app assembles the moire server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/moire/internal/moire/cache"
	"github.com/yungbote/moire/internal/moire/config"
	"github.com/yungbote/moire/internal/moire/engine"
	"github.com/yungbote/moire/internal/moire/httpapi"
	"github.com/yungbote/moire/internal/moire/render"
	"github.com/yungbote/moire/internal/moire/web"
	"github.com/yungbote/moire/internal/observability"
	"github.com/yungbote/moire/internal/platform/logger"
	"github.com/yungbote/moire/internal/platform/shutdown"
)

type App struct {
	Log    *logger.Logger
	Config *config.Config

	server  *http.Server
	engine  *engine.Engine
	metrics *observability.Metrics
	cache   cache.Cache
	closers shutdown.Stack
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig builds every component from an already validated cfg.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &App{Log: log, Config: cfg}
	a.closers.Push("logger", func(context.Context) error { log.Sync(); return nil })

	tel := cfg.Telemetry
	a.closers.Push("otel", observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     tel.OTelEnabled,
		ServiceName: tel.ServiceName,
		Environment: cfg.Env,
		Version:     tel.Version,
		Endpoint:    tel.OTLPEndpoint,
		Insecure:    tel.OTLPInsecure,
		Headers:     tel.OTLPHeaders,
		SampleRatio: tel.SampleRatio,
	}))
	a.metrics = observability.New(tel.MetricsEnabled)

	c, err := cache.New(ctx, cfg.Cache, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init render cache: %w", err)
	}
	a.cache = c
	a.closers.Push("cache", func(context.Context) error { return c.Close() })

	rd, err := render.New(render.Options{
		FontPath:    cfg.Render.FontPath,
		FontSize:    cfg.Render.FontSize,
		TitleBandPx: cfg.Render.TitleBandPx,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.engine, err = engine.New(log, c, rd, a.metrics, engine.Config{
		Workers:         cfg.Render.Workers,
		Timeout:         cfg.Render.Timeout.Duration,
		MaxDisplayPx:    cfg.Render.MaxDisplayPx,
		MaxLatticeCells: cfg.Render.MaxLatticeCells,
		LatticeConstant: cfg.Render.LatticeConstant,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	router, err := httpapi.NewRouter(httpapi.RouterConfig{
		HTTP:      cfg.HTTP,
		Telemetry: cfg.Telemetry,
		Log:       log,
		Engine:    a.engine,
		Metrics:   a.metrics,
		Page:      web.Page{Version: tel.Version},
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.server = httpapi.NewServer(cfg.HTTP, router)

	log.Info("moire initialized",
		"addr", cfg.HTTP.Addr,
		"env", cfg.Env,
		"cache", c.Backend(),
		"workers", cfg.Render.Workers,
		"metrics", a.metrics != nil,
		"otel", tel.OTelEnabled,
	)
	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves until ctx is cancelled or the listener fails, then shuts everything
// down within http.shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	if a.cache.Backend() == "redis" {
		a.metrics.StartCacheCollector(ctx, a.Log, 15*time.Second, a.engine.Ready)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening", "addr", a.server.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Log.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	a.closers.Run(shutdownCtx, func(name string, err error) {
		a.Log.Warn("shutdown step failed", "step", name, "error", err)
	})
	return runErr
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.closers.Run(ctx, nil)
}
