package storage

import (
	"fmt"

	"ask-kyra/internal/config"
)

// Open builds the store selected by cfg.StorageBackend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case config.BackendCSV:
		return NewCSVStore(cfg.QueriesFilePath, cfg.ProjectsFilePath)
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
