package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/moire/internal/moire/engine"
	"github.com/yungbote/moire/internal/moire/httpapi/response"
	"github.com/yungbote/moire/internal/moire/lattice"
	"github.com/yungbote/moire/internal/moire/system"
	"github.com/yungbote/moire/internal/platform/apierr"
	"github.com/yungbote/moire/internal/platform/ctxutil"
	"github.com/yungbote/moire/internal/platform/logger"
)

// StatusClientClosedRequest is reported when the caller went away before the
// render finished.
const StatusClientClosedRequest = 499

// toAPIError maps domain errors onto HTTP statuses and error codes.
func toAPIError(err error) *apierr.Error {
	var (
		pe *system.ParamError
		me *http.MaxBytesError
	)
	switch {
	case errors.As(err, &pe):
		return apierr.WithParam(http.StatusBadRequest, "invalid_params", pe.Param, err)
	case errors.Is(err, system.ErrInvalidParams), errors.Is(err, lattice.ErrInvalidExtent):
		return apierr.New(http.StatusBadRequest, "invalid_params", err)
	case errors.As(err, &me):
		return apierr.New(http.StatusRequestEntityTooLarge, "request_too_large", err)
	case errors.Is(err, system.ErrModeConflict):
		return apierr.New(http.StatusConflict, "mode_conflict", err)
	case errors.Is(err, context.Canceled):
		return apierr.New(StatusClientClosedRequest, "client_closed_request", err)
	case errors.Is(err, engine.ErrRenderTimeout), errors.Is(err, context.DeadlineExceeded):
		return apierr.New(http.StatusServiceUnavailable, "render_timeout", err)
	default:
		return apierr.From(err)
	}
}

func fail(c *gin.Context, log *logger.Logger, err error) {
	ae := toAPIError(err)
	if log != nil {
		fields := append([]interface{}{"error", err, "status", ae.Status}, ctxutil.LogFields(c.Request.Context())...)
		switch {
		case ae.Status == StatusClientClosedRequest:
			log.Debug("request canceled by client", fields...)
		case ae.Status >= 500:
			log.Error("request failed", fields...)
		}
	}
	_ = c.Error(err)
	response.RespondError(c, ae)
}
