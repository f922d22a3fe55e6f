package config

import (
	"os"
	"path/filepath"
	goruntime "runtime"
)

// DefaultDataDir returns the per-user data directory. The log is a user's
// local cache, so system-wide locations are never chosen.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tailview")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}
	switch goruntime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "tailview")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "tailview")
		}
		return filepath.Join(homeDir, "AppData", "Local", "tailview")
	default:
		return filepath.Join(homeDir, ".local", "share", "tailview")
	}
}

// StorePath is where the configured backend keeps its data: a directory
// for Pebble, a file for SQLite, and "" for the in-memory store.
func (c Config) StorePath() string {
	dir := c.Store.DataDir
	if dir == "" {
		dir = DefaultDataDir()
	}
	switch c.Store.Backend {
	case BackendSQLite:
		return filepath.Join(dir, "tailview.db")
	case BackendMemory:
		return ""
	default:
		return filepath.Join(dir, "pebble")
	}
}
