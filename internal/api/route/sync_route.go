package route

import (
	"time"

	"github.com/bassista/notesync/internal/api/controller"
	"github.com/bassista/notesync/internal/api/middleware"
	"github.com/bassista/notesync/internal/app"
	"github.com/gin-gonic/gin"
)

func NewSyncRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	group.Use(middleware.RequestTimeout(timeout))

	sc := controller.NewSyncController(appCtx.Workspace, appCtx.Backups, appCtx.Status)

	group.GET("status", sc.Status)
	group.POST("open", sc.Open)
	group.POST("save", sc.Save)
	group.POST("save-anyway", sc.SaveAnyway)
	group.POST("reject", sc.Reject)
	group.GET("recovery", sc.Recovery)
	group.POST("recovery/resolve", sc.Resolve)
	group.GET("backups", sc.Backups)
}
