package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bassista/notesync/internal/notes"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newNotesRouter(t *testing.T) (*gin.Engine, notes.Repository) {
	t.Helper()
	repo, err := notes.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	nc := NewNotesController(repo)
	r := gin.New()
	r.GET("/notes/*path", nc.Get)
	r.PATCH("/notes/*path", nc.Patch)
	return r, repo
}

func patchNote(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPatch, "/notes/"+path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNotesController_PatchThenGet(t *testing.T) {
	r, _ := newNotesRouter(t)

	w := patchNote(r, "journal/day1.md", `{"content":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/notes/journal/day1.md", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var note notes.Note
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if note.Path != "journal/day1.md" || note.Content != "hello" {
		t.Errorf("unexpected note %+v", note)
	}
}

func TestNotesController_PatchAcceptsEmptyContent(t *testing.T) {
	r, repo := newNotesRouter(t)

	w := patchNote(r, "empty.md", `{"content":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	note, err := repo.Get(t.Context(), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note.Content != "" {
		t.Errorf("expected empty content, got %q", note.Content)
	}
}

func TestNotesController_PatchMissingContent(t *testing.T) {
	r, _ := newNotesRouter(t)

	w := patchNote(r, "a.md", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	w = patchNote(r, "a.md", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestNotesController_InvalidPath(t *testing.T) {
	r, _ := newNotesRouter(t)

	w := patchNote(r, "dir/", `{"content":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestNotesController_GetNotFound(t *testing.T) {
	r, _ := newNotesRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/notes/missing.md", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected error message")
	}
}

func TestNotesController_List(t *testing.T) {
	r, _ := newNotesRouter(t)
	patchNote(r, "b.md", `{"content":"b"}`)
	patchNote(r, "a.md", `{"content":"a"}`)

	req := httptest.NewRequest(http.MethodGet, "/notes/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var paths []string
	if err := json.Unmarshal(w.Body.Bytes(), &paths); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(paths) != 2 || paths[0] != "a.md" || paths[1] != "b.md" {
		t.Errorf("unexpected paths %v", paths)
	}
}
