package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != filepath.Join("/custom/data", "tailview") {
		t.Fatalf("expected XDG override, got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "")
	t.Setenv("USERPROFILE", "")
	if got := DefaultDataDir(); got != "./data" {
		t.Fatalf("expected fallback to ./data, got %s", got)
	}
}

func TestDefaultDataDirUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("LOCALAPPDATA", "")
	got := DefaultDataDir()
	if !strings.HasPrefix(got, home) || filepath.Base(got) != "tailview" {
		t.Fatalf("expected a tailview dir under %s, got %s", home, got)
	}
}

func TestStorePath(t *testing.T) {
	cfg := Default()
	cfg.Store.DataDir = "/data"

	cfg.Store.Backend = BackendPebble
	if got := cfg.StorePath(); got != filepath.Join("/data", "pebble") {
		t.Fatalf("pebble path: %s", got)
	}
	cfg.Store.Backend = BackendSQLite
	if got := cfg.StorePath(); got != filepath.Join("/data", "tailview.db") {
		t.Fatalf("sqlite path: %s", got)
	}
	cfg.Store.Backend = BackendMemory
	if got := cfg.StorePath(); got != "" {
		t.Fatalf("memory path: %s", got)
	}
}
