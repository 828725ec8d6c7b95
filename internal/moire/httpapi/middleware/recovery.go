package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/moire/internal/moire/httpapi/response"
	"github.com/yungbote/moire/internal/platform/apierr"
	"github.com/yungbote/moire/internal/platform/ctxutil"
	"github.com/yungbote/moire/internal/platform/logger"
)

// Recover turns handler panics into a logged 500 with the standard error envelope.
func Recover(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		if log != nil {
			fields := append([]interface{}{"panic", rec, "stack", string(debug.Stack())}, ctxutil.LogFields(c.Request.Context())...)
			log.Error("panic recovered", fields...)
		}
		response.RespondError(c, apierr.New(http.StatusInternalServerError, "internal", errors.New("internal server error")))
		c.Abort()
	})
}
