package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bassista/notesync/internal/logger"
	"github.com/bassista/notesync/internal/notes"
	"github.com/gin-gonic/gin"
)

// PatchNoteRequest is the body of PATCH /notes/*path. Content may be empty but must be present.
type PatchNoteRequest struct {
	Content *string `json:"content" binding:"required"`
}

// NotesController serves the remote persistence side of the sync engine.
type NotesController struct {
	repo notes.Repository
}

func NewNotesController(repo notes.Repository) *NotesController {
	return &NotesController{repo: repo}
}

// list returns the paths of all stored notes.
func (nc *NotesController) list(c *gin.Context) {
	paths, err := nc.repo.List(c.Request.Context())
	if err != nil {
		logger.WithComponent("notes_controller").Errorf("failed to list notes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notes"})
		return
	}
	c.JSON(http.StatusOK, paths)
}

// Get returns the stored copy of a note. The bare collection path lists all notes.
func (nc *NotesController) Get(c *gin.Context) {
	if strings.Trim(c.Param("path"), "/") == "" {
		nc.list(c)
		return
	}
	note, err := nc.repo.Get(c.Request.Context(), c.Param("path"))
	if err != nil {
		nc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// Patch replaces the content of a note, creating it when missing.
func (nc *NotesController) Patch(c *gin.Context) {
	var req PatchNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	note, err := nc.repo.Put(c.Request.Context(), c.Param("path"), *req.Content)
	if err != nil {
		nc.writeError(c, err)
		return
	}
	logger.WithDocument("notes_controller", note.Path).
		WithField("correlation_id", c.GetString("correlation_id")).
		Debugf("stored %d bytes", len(note.Content))
	c.JSON(http.StatusOK, note)
}

func (nc *NotesController) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, notes.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, notes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
	default:
		logger.WithComponent("notes_controller").Errorf("note %s: %v", c.Param("path"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to access note"})
	}
}
