// Package httpapi wires the dashboard's HTTP surface onto gin.
package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/moire/internal/moire/config"
	"github.com/yungbote/moire/internal/moire/engine"
	httpH "github.com/yungbote/moire/internal/moire/httpapi/handlers"
	httpMW "github.com/yungbote/moire/internal/moire/httpapi/middleware"
	"github.com/yungbote/moire/internal/moire/web"
	"github.com/yungbote/moire/internal/observability"
	"github.com/yungbote/moire/internal/platform/logger"
)

type RouterConfig struct {
	HTTP      config.HTTPConfig
	Telemetry config.TelemetryConfig
	Log       *logger.Logger
	Engine    *engine.Engine
	Metrics   *observability.Metrics
	Page      web.Page
}

func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine required")
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}

	r := gin.New()
	if cfg.Telemetry.OTelEnabled {
		r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log.Named("http")))
	r.Use(httpMW.Recover(log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.HTTP.CORSOrigins))
	r.Use(httpMW.BodyLimit(cfg.HTTP.MaxRequestBytes))

	r.SetHTMLTemplate(web.Templates())
	staticFS, err := web.Static()
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	r.StaticFS("/static", http.FS(staticFS))

	page := httpH.NewPageHandler(cfg.Page)
	health := httpH.NewHealthHandler(cfg.Engine, log)
	renderH := httpH.NewRenderHandler(cfg.Engine, log)

	r.GET("/", page.Index)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/schema", renderH.Schema)
		v1.GET("/plot.png", renderH.Plot)
		v1.GET("/download.png", renderH.Download)
		v1.GET("/lattice", renderH.Lattice)
		v1.POST("/render", renderH.Render)
	}
	return r, nil
}

func NewServer(cfg config.HTTPConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.IdleTimeout.Duration,
		WriteTimeout:      cfg.WriteTimeout.Duration,
	}
}
