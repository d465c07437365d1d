package middleware

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"
)

// HoneybadgerMiddleware reports panics and error responses to Honeybadger.
// It is a pass-through unless HONEYBADGER_API_KEY is set. Panics are re-raised
// so gin.Recovery still writes the response.
func HoneybadgerMiddleware(log *logrus.Entry) gin.HandlerFunc {
	apiKey := os.Getenv("HONEYBADGER_API_KEY")
	if apiKey == "" {
		log.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    os.Getenv("GO_ENV"),
	})
	log.Info("Honeybadger error reporting is enabled.")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				honeybadger.Notify(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.Request.URL.Path),
					c.Request, honeybadger.Context{
						"stack":          string(debug.Stack()),
						"correlation_id": c.GetString(CorrelationKey),
					}, honeybadger.Tags{"panic", "http"})
				log.Error("Recovered from panic, notified Honeybadger: ", rec)
				panic(rec)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		// 404 and 409 are ordinary outcomes for note lookups and conflicts.
		if status < 400 || status == 404 || status == 409 {
			return
		}
		ctx := honeybadger.Context{"correlation_id": c.GetString(CorrelationKey)}
		if status >= 500 {
			honeybadger.Notify(fmt.Sprintf("Error: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path),
				c.Request, ctx, honeybadger.Tags{"5XX", "http"})
		} else {
			honeybadger.Notify(fmt.Sprintf("Warning: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path),
				ctx, honeybadger.Tags{"4XX", "http"})
		}
		log.Warnf("Honeybadger reported HTTP %d for %s %s", status, c.Request.Method, c.Request.URL.Path)
	}
}
