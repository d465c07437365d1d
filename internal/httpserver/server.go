// Package httpserver builds the gracefully stopping HTTP servers used by both binaries.
package httpserver

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/bassista/notesync/internal/config"
	"github.com/bassista/notesync/internal/logger"
	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
)

// ConfigureGin applies the gin mode and routes gin's own output through logrus.
func ConfigureGin(mode string) {
	if mode != "" {
		gin.SetMode(mode)
	}
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()
}

// New returns an httpgrace server for h that stops on SIGTERM/SIGINT.
// Request contexts derive from ctx so shutting the app down cancels in-flight work.
func New(ctx context.Context, name string, serverConfig config.ServerConfig, h http.Handler) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	return httpgrace.NewServer(h,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
}
