package backup

import (
	"fmt"

	"github.com/bassista/notesync/internal/config"
)

// NewRepositoryFromConfig creates the Repository selected by cfg.Backend.
// An empty backend means json.
func NewRepositoryFromConfig(cfg config.BackupConfig) (Repository, error) {
	switch cfg.Backend {
	case config.BackupBackendJSON, "":
		return NewJSONRepository(cfg.FilePath)
	case config.BackupBackendSQLite:
		return OpenSQLiteRepository(cfg.FilePath)
	case config.BackupBackendMemory:
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown backup backend: %s (supported: %s, %s, %s)",
			cfg.Backend, config.BackupBackendJSON, config.BackupBackendSQLite, config.BackupBackendMemory)
	}
}
