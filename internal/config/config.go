package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bassista/notesync/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackupBackendJSON   = "json"
	BackupBackendSQLite = "sqlite"
	BackupBackendMemory = "memory"
)

// Config is the full application configuration shared by the notes server and the sync client.
type Config struct {
	Server  ServerConfig
	Control ControlConfig
	Notes   NotesConfig
	Sync    SyncConfig
	Backup  BackupConfig
	Remote  RemoteConfig
	Misc    MiscConfig
}

// ServerConfig configures the HTTP notes service.
type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

// ControlConfig configures the local control API of the sync client.
type ControlConfig struct {
	Port         int
	WorkspaceDir string
}

// NotesConfig configures the notes service storage.
type NotesConfig struct {
	Dir string
}

// SyncConfig holds the save engine timings and loss thresholds.
// The defaults reproduce the historical behavior; they are tunables, not invariants.
type SyncConfig struct {
	DebounceDelay  time.Duration
	CeilingDelay   time.Duration
	SavedStatusTTL time.Duration
	WriteTimeout   time.Duration
	LossPercent    float64
	LossChars      int
}

// BackupConfig selects and configures the offline backup repository.
type BackupConfig struct {
	Backend  string
	FilePath string
	Debounce time.Duration
}

// RemoteConfig tells the sync client where the notes service lives.
type RemoteConfig struct {
	BaseURL       string
	Token         string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

type MiscConfig struct {
	LogLevel string
	LogFile  string
	GinMode  string
}

// LoadConfig reads .env, config.yaml and NOTESYNC_* environment variables, then validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Warnf("cannot load .env file: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnvOrDefault("NOTESYNC_CONFIG_PATH", "./config"))

	setDefaults(v)

	// Environment variables automatically override config file values:
	// NOTESYNC_SYNC_DEBOUNCE_DELAY overrides sync.debounce_delay.
	v.SetEnvPrefix("NOTESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Debug("no config file found, using defaults and env vars")
	}

	port, err := getEnvOrViperPort(v, "PORT", "server.port")
	if err != nil {
		return nil, err
	}
	controlPort, err := getEnvOrViperPort(v, "CONTROL_PORT", "control.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: v.GetString("server.cors_allowed_origins"),
		},
		Control: ControlConfig{
			Port:         controlPort,
			WorkspaceDir: v.GetString("control.workspace_dir"),
		},
		Notes: NotesConfig{
			Dir: v.GetString("notes.dir"),
		},
		Sync: SyncConfig{
			DebounceDelay:  v.GetDuration("sync.debounce_delay"),
			CeilingDelay:   v.GetDuration("sync.ceiling_delay"),
			SavedStatusTTL: v.GetDuration("sync.saved_status_ttl"),
			WriteTimeout:   v.GetDuration("sync.write_timeout"),
			LossPercent:    v.GetFloat64("sync.loss_percent"),
			LossChars:      v.GetInt("sync.loss_chars"),
		},
		Backup: BackupConfig{
			Backend:  strings.ToLower(strings.TrimSpace(v.GetString("backup.backend"))),
			FilePath: v.GetString("backup.file_path"),
			Debounce: v.GetDuration("backup.debounce"),
		},
		Remote: RemoteConfig{
			BaseURL:       v.GetString("remote.base_url"),
			Token:         strings.TrimSpace(v.GetString("remote.token")),
			ProbeInterval: v.GetDuration("remote.probe_interval"),
			ProbeTimeout:  v.GetDuration("remote.probe_timeout"),
		},
		Misc: MiscConfig{
			LogLevel: v.GetString("misc.log_level"),
			LogFile:  v.GetString("misc.log_file"),
			GinMode:  v.GetString("misc.gin_mode"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := ensureDirs(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 5*time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("control.port", 8081)
	v.SetDefault("control.workspace_dir", "./data/workspace")

	v.SetDefault("notes.dir", "./data/notes")

	v.SetDefault("sync.debounce_delay", 2000*time.Millisecond)
	v.SetDefault("sync.ceiling_delay", 30000*time.Millisecond)
	v.SetDefault("sync.saved_status_ttl", 2*time.Second)
	v.SetDefault("sync.write_timeout", 15*time.Second)
	v.SetDefault("sync.loss_percent", 0.20)
	v.SetDefault("sync.loss_chars", 50)

	v.SetDefault("backup.backend", BackupBackendJSON)
	v.SetDefault("backup.file_path", "./data/backups.json")
	v.SetDefault("backup.debounce", 1000*time.Millisecond)

	v.SetDefault("remote.base_url", "http://127.0.0.1:8080")
	v.SetDefault("remote.probe_interval", 5*time.Second)
	v.SetDefault("remote.probe_timeout", 3*time.Second)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Control.Port < 0 || c.Control.Port > 65535 {
		return fmt.Errorf("invalid control port: %d", c.Control.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 || c.Server.ShutDownTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server request timeout must be positive")
	}
	if strings.TrimSpace(c.Control.WorkspaceDir) == "" {
		return errors.New("control workspace dir is required")
	}
	if strings.TrimSpace(c.Notes.Dir) == "" {
		return errors.New("notes dir is required")
	}
	if c.Sync.DebounceDelay <= 0 {
		return errors.New("sync debounce delay must be positive")
	}
	if c.Sync.CeilingDelay <= 0 {
		return errors.New("sync ceiling delay must be positive")
	}
	if c.Sync.CeilingDelay < c.Sync.DebounceDelay {
		return fmt.Errorf("sync ceiling delay (%s) must not be shorter than the debounce delay (%s)", c.Sync.CeilingDelay, c.Sync.DebounceDelay)
	}
	if c.Sync.WriteTimeout <= 0 {
		return errors.New("sync write timeout must be positive")
	}
	if c.Sync.SavedStatusTTL < 0 {
		return errors.New("sync saved status ttl must not be negative")
	}
	if c.Sync.LossPercent <= 0 || c.Sync.LossPercent > 1 {
		return fmt.Errorf("sync loss percent must be in (0, 1], got %v", c.Sync.LossPercent)
	}
	if c.Sync.LossChars < 0 {
		return fmt.Errorf("sync loss chars must not be negative, got %d", c.Sync.LossChars)
	}
	switch c.Backup.Backend {
	case BackupBackendJSON, BackupBackendSQLite:
		if strings.TrimSpace(c.Backup.FilePath) == "" {
			return errors.New("backup file path is required")
		}
	case BackupBackendMemory:
	default:
		return fmt.Errorf("unknown backup backend: %q (supported: %s, %s, %s)", c.Backup.Backend, BackupBackendJSON, BackupBackendSQLite, BackupBackendMemory)
	}
	if c.Backup.Debounce <= 0 {
		return errors.New("backup debounce must be positive")
	}
	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		return errors.New("remote base url is required")
	}
	if c.Remote.ProbeInterval <= 0 || c.Remote.ProbeTimeout <= 0 {
		return errors.New("remote probe interval and timeout must be positive")
	}
	return nil
}

func ensureDirs(cfg *Config) error {
	if err := os.MkdirAll(cfg.Notes.Dir, 0o755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Control.WorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}
	if cfg.Backup.Backend == BackupBackendMemory {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Backup.FilePath), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrViperPort(v *viper.Viper, envKey, viperKey string) (int, error) {
	if raw := strings.TrimSpace(os.Getenv(envKey)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, raw, err)
		}
		return port, nil
	}
	return v.GetInt(viperKey), nil
}
