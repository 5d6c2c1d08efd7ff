package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	driver: "sqlite",
	initStatements: []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	},
	idColumn:    "INTEGER PRIMARY KEY AUTOINCREMENT",
	placeholder: func(int) string { return "?" },
}

// NewSQLiteStore opens or creates a journal database at path
func NewSQLiteStore(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return openSQLStore(sqliteDialect, path)
}
