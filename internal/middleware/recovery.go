package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into the standard 500 envelope
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			// the client went away mid-response; nothing left to write
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				c.Abort()
				return
			}

			fields := map[string]interface{}{
				"request_id": c.GetString("request_id"),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"stack":      string(debug.Stack()),
			}
			if userID := c.GetString("user_id"); userID != "" {
				fields["user_id"] = userID
			}
			log.WithFields(fields).Error("Panic recovered", fmt.Errorf("%v", rec))

			if !c.Writer.Written() {
				util.SendCustomError(c, http.StatusInternalServerError, util.ErrCodeInternal, "Internal server error")
			}
			c.Abort()
		}()

		c.Next()
	}
}
