package route

import (
	"time"

	"github.com/bassista/notesync/internal/api/controller"
	"github.com/bassista/notesync/internal/api/middleware"
	"github.com/bassista/notesync/internal/notes"
	"github.com/gin-gonic/gin"
)

func NewNotesRouter(timeout time.Duration, group *gin.RouterGroup, repo notes.Repository) {
	group.Use(middleware.RequestTimeout(timeout))

	nc := controller.NewNotesController(repo)

	group.GET("notes/*path", nc.Get)
	group.PATCH("notes/*path", nc.Patch)
}
