package database

import (
	"database/sql"
	"fmt"

	"github.com/lysyi3m/feedkit/app/logger"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	path string
}

// NewConnection opens the SQLite database at path, creating the file when missing.
func NewConnection(path string) (*DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Log.WithField("path", path).Debug("Database connection established")

	return &DB{DB: db, path: path}, nil
}

func (db *DB) Path() string {
	return db.path
}
