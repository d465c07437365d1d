package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationHeader carries the request id between the sync client and the notes service.
	CorrelationHeader = "X-Correlation-Id"
	// CorrelationKey is the gin context key holding the request id.
	CorrelationKey = "correlation_id"
)

// CorrelationID reuses the caller's correlation id, or mints one, and echoes it back.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CorrelationHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(CorrelationKey, id)
		c.Header(CorrelationHeader, id)
		c.Next()
	}
}
