package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	fileName     = "habitline.db"
	dataDir      = ".habitline"
	defaultBusy  = 5 * time.Second
	defaultWSDir = "."
)

// Config selects the workspace holding the database.
type Config struct {
	Workspace string
	// BusyTimeout bounds how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

func workspaceOrDefault(workspace string) string {
	if workspace == "" {
		return defaultWSDir
	}
	return workspace
}

// Path returns the database file for the workspace.
func Path(workspace string) string {
	return filepath.Join(workspaceOrDefault(workspace), dataDir, fileName)
}

// EnsureWorkspace creates the .habitline data directory and returns it.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(workspaceOrDefault(workspace), dataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return dir, nil
}

// DSN builds the modernc sqlite connection string for cfg.
func DSN(cfg Config) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusy
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + Path(cfg.Workspace) + "?" + q.Encode()
}

// Open opens the workspace database. The connection is lazy; callers ping it.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", Path(cfg.Workspace), err)
	}
	return conn, nil
}
