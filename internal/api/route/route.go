package route

import (
	"net/http"

	"github.com/bassista/notesync/internal/api/middleware"
	"github.com/bassista/notesync/internal/app"
	"github.com/bassista/notesync/internal/config"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/notes"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "UP",
	})
}

// SetupNotesRoutes mounts the notes service on r.
func SetupNotesRoutes(r *gin.Engine, cfg config.ServerConfig, repo notes.Repository) *gin.Engine {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middleware.HoneybadgerMiddleware(logger.WithComponent("notes_server")))

	r.GET("/health", health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	publicRouter := r.Group("")
	NewNotesRouter(cfg.RequestTimeout, publicRouter, repo)
	return r
}

// SetupSyncRoutes mounts the local control API of the sync client on r.
func SetupSyncRoutes(r *gin.Engine, appCtx *app.App) *gin.Engine {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
			"online":  appCtx.Monitor.Online(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	controlRouter := r.Group("/api")
	NewSyncRouter(appCtx.Config.Server.RequestTimeout+appCtx.Config.Sync.WriteTimeout, controlRouter, appCtx)
	return r
}
