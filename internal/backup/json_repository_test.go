package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeBackupFile(t *testing.T, path string, doc Document) {
	t.Helper()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
}

func TestNewJSONRepository_EmptyPath(t *testing.T) {
	if _, err := NewJSONRepository(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNewJSONRepository_MissingFileIsEmpty(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "nested", "backups.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestNewJSONRepository_LoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backups.json")
	writeBackupFile(t, path, Document{
		Metadata: Metadata{LastUpdate: 1000},
		Records: map[string]Record{
			"a.md": {Path: "a.md", Content: "alpha", Timestamp: 10},
		},
	})

	repo, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := repo.Get(context.Background(), "a.md")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil || rec.Content != "alpha" || rec.Timestamp != 10 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestNewJSONRepository_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backups.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewJSONRepository(path); err == nil {
		t.Error("expected decode error")
	}
}

func TestNewJSONRepository_InvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backups.json")
	writeBackupFile(t, path, Document{
		Records: map[string]Record{"a.md": {Path: "a.md", Content: "x"}},
	})
	if _, err := NewJSONRepository(path); err == nil {
		t.Error("expected validation error for record without timestamp")
	}
}

func TestJSONRepository_PutGetDeletePersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backups.json")
	repo, err := NewJSONRepository(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Put(ctx, Record{Path: "b.md", Content: "beta", Timestamp: 2}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, Record{Path: "a.md", Content: "alpha", Timestamp: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// a fresh repository sees what the first one wrote
	reopened, err := NewJSONRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	records, err := reopened.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Path != "a.md" || records[1].Path != "b.md" {
		t.Fatalf("expected sorted records a.md, b.md; got %+v", records)
	}

	if err := repo.Delete(ctx, "a.md"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "missing.md"); err != nil {
		t.Fatalf("delete of missing path should be a no-op: %v", err)
	}
	rec, _ := repo.Get(ctx, "a.md")
	if rec != nil {
		t.Errorf("expected a.md to be gone, got %+v", rec)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if e.Name() != "backups.json" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestJSONRepository_PutRejectsInvalidRecord(t *testing.T) {
	repo, _ := NewJSONRepository(filepath.Join(t.TempDir(), "backups.json"))
	if err := repo.Put(context.Background(), Record{Content: "x", Timestamp: 1}); err == nil {
		t.Error("expected error for record without path")
	}
}

func TestJSONRepository_Closed(t *testing.T) {
	ctx := context.Background()
	repo, _ := NewJSONRepository(filepath.Join(t.TempDir(), "backups.json"))
	if err := repo.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(ctx, "a.md"); err != ErrRepositoryClosed {
		t.Errorf("expected ErrRepositoryClosed, got %v", err)
	}
	if err := repo.Put(ctx, Record{Path: "a.md", Timestamp: 1}); err != ErrRepositoryClosed {
		t.Errorf("expected ErrRepositoryClosed, got %v", err)
	}
}

func TestJSONRepository_ReloadAdoptsExternalWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backups.json")
	repo, _ := NewJSONRepository(path)
	if err := repo.Put(ctx, Record{Path: "a.md", Content: "mine", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}

	other, _ := NewJSONRepository(path)
	if err := other.Delete(ctx, "a.md"); err != nil {
		t.Fatal(err)
	}

	repo.Reload()
	rec, _ := repo.Get(ctx, "a.md")
	if rec != nil {
		t.Errorf("expected reload to drop a.md, got %+v", rec)
	}
}

func TestJSONRepository_WatcherReloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "backups.json")
	repo, _ := NewJSONRepository(path)
	if err := repo.StartWatcher(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	other, _ := NewJSONRepository(path)
	if err := other.Put(ctx, Record{Path: "c.md", Content: "external", Timestamp: 5}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if rec, _ := repo.Get(ctx, "c.md"); rec != nil && rec.Content == "external" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not reload external change")
}
