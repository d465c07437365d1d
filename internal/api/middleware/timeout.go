package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bassista/notesync/internal/logger"
	"github.com/gin-gonic/gin"
)

// RequestTimeout bounds every request context by d.
// Handlers are not killed; they must honor ctx.Done(). A request whose
// context expired before anything was written answers 504.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	log := logger.WithComponent("http")

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			log.WithField("correlation_id", c.GetString(CorrelationKey)).
				Warnf("%s %s exceeded %s", c.Request.Method, c.Request.URL.Path, d)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": "request timeout",
			})
		}
	}
}
