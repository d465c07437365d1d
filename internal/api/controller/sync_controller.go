package controller

import (
	"errors"
	"net/http"

	"github.com/bassista/notesync/internal/backup"
	"github.com/bassista/notesync/internal/engine"
	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/notes"
	"github.com/bassista/notesync/internal/status"
	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"
)

// OpenRequest is the body of POST /open.
type OpenRequest struct {
	Path string `json:"path" binding:"required"`
}

// SyncController exposes the local sync engine to the editor front end.
type SyncController struct {
	ws      *engine.Workspace
	backups *backup.Store
	bus     *status.Bus
}

func NewSyncController(ws *engine.Workspace, backups *backup.Store, bus *status.Bus) *SyncController {
	return &SyncController{ws: ws, backups: backups, bus: bus}
}

// Status reports the active document and the last published status line.
func (sc *SyncController) Status(c *gin.Context) {
	snap, err := sc.ws.Snapshot()
	resp := gin.H{"status": sc.bus.Current(), "session": snap}
	if errors.Is(err, engine.ErrNoDocument) {
		resp["session"] = nil
		resp["online"] = snap.Online
	}
	c.JSON(http.StatusOK, resp)
}

// Open loads a document from the notes service and makes it the active one.
func (sc *SyncController) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	conflict, err := sc.ws.Open(c.Request.Context(), req.Path)
	if err != nil {
		sc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": sc.activePath(), "conflict": conflict})
}

// Save flushes the active document now.
func (sc *SyncController) Save(c *gin.Context) {
	result, err := sc.ws.SaveNow(c.Request.Context())
	sc.writeResult(c, result, err)
}

// SaveAnyway overrides the content loss guard once and saves.
func (sc *SyncController) SaveAnyway(c *gin.Context) {
	result, err := sc.ws.SaveAnyway(c.Request.Context())
	sc.writeResult(c, result, err)
}

// Reject undoes the edit that triggered the content loss guard.
func (sc *SyncController) Reject(c *gin.Context) {
	restored, err := sc.ws.RejectLoss()
	if err != nil {
		sc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored})
}

// Recovery lists the conflicts waiting for a decision.
func (sc *SyncController) Recovery(c *gin.Context) {
	c.JSON(http.StatusOK, sc.ws.Reconciler().PendingAll())
}

// Resolve applies the user's choice for the active document's conflict.
func (sc *SyncController) Resolve(c *gin.Context) {
	var res engine.Resolution
	if err := c.ShouldBindJSON(&res); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := sc.ws.Resolve(c.Request.Context(), res); err != nil {
		sc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": sc.activePath(), "source": res.Source})
}

// Backups lists every locally stored backup.
func (sc *SyncController) Backups(c *gin.Context) {
	records, err := sc.backups.List(c.Request.Context())
	if err != nil {
		logger.WithComponent("sync_controller").Errorf("failed to list backups: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list backups"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (sc *SyncController) activePath() string {
	if s := sc.ws.Active(); s != nil {
		return s.Path()
	}
	return ""
}

func (sc *SyncController) writeResult(c *gin.Context, result engine.SaveResult, err error) {
	if err != nil {
		if errors.Is(err, engine.ErrNoDocument) {
			sc.writeError(c, err)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"result": result, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "status": sc.bus.Current()})
}

func (sc *SyncController) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNoDocument):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrNoConflict):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, notes.ErrInvalidPath), errdefs.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errdefs.IsUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.WithComponent("sync_controller").Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
