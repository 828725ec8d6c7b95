package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/moire/internal/moire/engine"
	"github.com/yungbote/moire/internal/moire/httpapi/response"
	"github.com/yungbote/moire/internal/platform/apierr"
	"github.com/yungbote/moire/internal/platform/logger"
)

type HealthHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

func NewHealthHandler(e *engine.Engine, log *logger.Logger) *HealthHandler {
	return &HealthHandler{engine: e, log: log}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Readyz reports whether the render cache is reachable.
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.engine.Ready(ctx); err != nil {
		if h.log != nil {
			h.log.Warn("readiness check failed", "error", err, "cache", h.engine.CacheBackend())
		}
		response.RespondError(c, apierr.New(http.StatusServiceUnavailable, "not_ready", err))
		return
	}
	response.RespondOK(c, gin.H{"status": "ok", "cache": h.engine.CacheBackend()})
}
