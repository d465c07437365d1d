package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutDownTimeout:    5 * time.Second,
			RequestTimeout:     5 * time.Second,
			CORSAllowedOrigins: "*",
		},
		Control: ControlConfig{Port: 8081, WorkspaceDir: "/tmp/workspace"},
		Notes:   NotesConfig{Dir: "/tmp/notes"},
		Sync: SyncConfig{
			DebounceDelay:  2 * time.Second,
			CeilingDelay:   30 * time.Second,
			SavedStatusTTL: 2 * time.Second,
			WriteTimeout:   15 * time.Second,
			LossPercent:    0.20,
			LossChars:      50,
		},
		Backup: BackupConfig{
			Backend:  BackupBackendJSON,
			FilePath: "/tmp/backups.json",
			Debounce: time.Second,
		},
		Remote: RemoteConfig{
			BaseURL:       "http://127.0.0.1:8080",
			ProbeInterval: 5 * time.Second,
			ProbeTimeout:  3 * time.Second,
		},
		Misc: MiscConfig{GinMode: "release"},
	}
}

func TestConfig_Validate_Valid(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"too high port", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port
			if err := cfg.validate(); err == nil {
				t.Errorf("expected error for port %d", tt.port)
			}
		})
	}
}

func TestConfig_Validate_InvalidTimeouts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"zero write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }},
		{"zero idle timeout", func(c *Config) { c.Server.IdleTimeout = 0 }},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutDownTimeout = 0 }},
		{"zero request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
		{"zero debounce", func(c *Config) { c.Sync.DebounceDelay = 0 }},
		{"zero ceiling", func(c *Config) { c.Sync.CeilingDelay = 0 }},
		{"ceiling shorter than debounce", func(c *Config) { c.Sync.CeilingDelay = time.Second }},
		{"zero write timeout for saves", func(c *Config) { c.Sync.WriteTimeout = 0 }},
		{"negative saved ttl", func(c *Config) { c.Sync.SavedStatusTTL = -time.Second }},
		{"zero backup debounce", func(c *Config) { c.Backup.Debounce = 0 }},
		{"zero probe interval", func(c *Config) { c.Remote.ProbeInterval = 0 }},
		{"zero probe timeout", func(c *Config) { c.Remote.ProbeTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestConfig_Validate_LossThresholds(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		chars   int
		wantErr bool
	}{
		{"defaults", 0.20, 50, false},
		{"full loss allowed", 1, 0, false},
		{"zero percent", 0, 50, true},
		{"above one", 1.5, 50, true},
		{"negative chars", 0.2, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Sync.LossPercent = tt.percent
			cfg.Sync.LossChars = tt.chars
			err := cfg.validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_Validate_BackupBackend(t *testing.T) {
	tests := []struct {
		backend  string
		filePath string
		wantErr  bool
	}{
		{BackupBackendJSON, "/tmp/b.json", false},
		{BackupBackendSQLite, "/tmp/b.db", false},
		{BackupBackendMemory, "", false},
		{BackupBackendJSON, "", true},
		{"redis", "/tmp/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend+"_"+tt.filePath, func(t *testing.T) {
			cfg := validConfig()
			cfg.Backup.Backend = tt.backend
			cfg.Backup.FilePath = tt.filePath
			err := cfg.validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_Validate_EmptyNotesDirAndRemote(t *testing.T) {
	cfg := validConfig()
	cfg.Notes.Dir = " "
	if err := cfg.validate(); err == nil {
		t.Error("expected error for empty notes dir")
	}

	cfg = validConfig()
	cfg.Control.WorkspaceDir = ""
	if err := cfg.validate(); err == nil {
		t.Error("expected error for empty workspace dir")
	}

	cfg = validConfig()
	cfg.Remote.BaseURL = ""
	if err := cfg.validate(); err == nil {
		t.Error("expected error for empty remote base url")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "custom_value")

	if result := getEnvOrDefault("TEST_ENV_VAR", "default_value"); result != "custom_value" {
		t.Errorf("expected 'custom_value', got '%s'", result)
	}
	if result := getEnvOrDefault("NONEXISTENT_VAR", "default_value"); result != "default_value" {
		t.Errorf("expected 'default_value', got '%s'", result)
	}

	t.Setenv("TEST_EMPTY_VAR", "")
	if result := getEnvOrDefault("TEST_EMPTY_VAR", "default_value"); result != "default_value" {
		t.Errorf("expected 'default_value' for empty env, got '%s'", result)
	}
}

func TestGetEnvOrViperPort(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 7070)

	t.Setenv("TEST_PORT", "9090")
	port, err := getEnvOrViperPort(v, "TEST_PORT", "server.port")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 9090 {
		t.Errorf("expected 9090, got %d", port)
	}

	port, err = getEnvOrViperPort(v, "NONEXISTENT_PORT_VAR_12345", "server.port")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 7070 {
		t.Errorf("expected viper value 7070, got %d", port)
	}

	t.Setenv("TEST_PORT_INVALID", "not_a_number")
	if _, err := getEnvOrViperPort(v, "TEST_PORT_INVALID", "server.port"); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestLoadConfig_WithValidDefaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("NOTESYNC_CONFIG_PATH", tempDir)
	t.Setenv("NOTESYNC_NOTES_DIR", filepath.Join(tempDir, "notes"))
	t.Setenv("NOTESYNC_CONTROL_WORKSPACE_DIR", filepath.Join(tempDir, "workspace"))
	t.Setenv("NOTESYNC_BACKUP_FILE_PATH", filepath.Join(tempDir, "state", "backups.json"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error loading config, got: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Sync.DebounceDelay != 2*time.Second {
		t.Errorf("expected 2s debounce, got %s", cfg.Sync.DebounceDelay)
	}
	if cfg.Sync.CeilingDelay != 30*time.Second {
		t.Errorf("expected 30s ceiling, got %s", cfg.Sync.CeilingDelay)
	}
	if cfg.Backup.Debounce != time.Second {
		t.Errorf("expected 1s backup debounce, got %s", cfg.Backup.Debounce)
	}
	if cfg.Sync.LossPercent != 0.20 || cfg.Sync.LossChars != 50 {
		t.Errorf("unexpected loss thresholds: %v / %d", cfg.Sync.LossPercent, cfg.Sync.LossChars)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "notes")); err != nil {
		t.Errorf("expected notes dir to be created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "state")); err != nil {
		t.Errorf("expected backup dir to be created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "workspace")); err != nil {
		t.Errorf("expected workspace dir to be created: %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("NOTESYNC_CONFIG_PATH", tempDir)
	t.Setenv("NOTESYNC_NOTES_DIR", filepath.Join(tempDir, "notes"))
	t.Setenv("NOTESYNC_CONTROL_WORKSPACE_DIR", filepath.Join(tempDir, "workspace"))
	t.Setenv("NOTESYNC_BACKUP_BACKEND", "memory")
	t.Setenv("NOTESYNC_SYNC_DEBOUNCE_DELAY", "500ms")
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error loading config, got: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Sync.DebounceDelay != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %s", cfg.Sync.DebounceDelay)
	}
	if cfg.Backup.Backend != BackupBackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Backup.Backend)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	yaml := "sync:\n  ceiling_delay: 45s\n  loss_chars: 80\nbackup:\n  backend: memory\n"
	if err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NOTESYNC_CONFIG_PATH", tempDir)
	t.Setenv("NOTESYNC_NOTES_DIR", filepath.Join(tempDir, "notes"))
	t.Setenv("NOTESYNC_CONTROL_WORKSPACE_DIR", filepath.Join(tempDir, "workspace"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error loading config, got: %v", err)
	}
	if cfg.Sync.CeilingDelay != 45*time.Second {
		t.Errorf("expected 45s ceiling, got %s", cfg.Sync.CeilingDelay)
	}
	if cfg.Sync.LossChars != 80 {
		t.Errorf("expected loss chars 80, got %d", cfg.Sync.LossChars)
	}
}

func TestLoadConfig_WithInvalidPort(t *testing.T) {
	t.Setenv("NOTESYNC_CONFIG_PATH", t.TempDir())
	t.Setenv("PORT", "not_a_port")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid port, got nil")
	}
}

func TestLoadConfig_WithInvalidControlPort(t *testing.T) {
	t.Setenv("NOTESYNC_CONFIG_PATH", t.TempDir())
	t.Setenv("CONTROL_PORT", "invalid")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid control port, got nil")
	}
}
