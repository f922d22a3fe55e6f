package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Store.Backend != BackendPebble {
		t.Fatalf("default backend should be pebble, got %q", cfg.Store.Backend)
	}
	if cfg.Viewport.ItemHeightPx != 25 || cfg.Viewport.PrefetchMargin != 5 || cfg.Viewport.Lookahead != 1000 {
		t.Fatalf("viewport defaults: %+v", cfg.Viewport)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tailview.json")
	data := []byte(`{"stream":{"url":"http://example.test/logs","charset":"latin1"},"store":{"backend":"sqlite"},"viewport":{"itemHeightPx":20}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stream.URL != "http://example.test/logs" || cfg.Stream.Charset != "latin1" {
		t.Fatalf("stream: %+v", cfg.Stream)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Fatalf("expected sqlite")
	}
	if cfg.Viewport.ItemHeightPx != 20 {
		t.Fatalf("expected 20")
	}
	// Unset fields keep their defaults.
	if cfg.Viewport.Lookahead != 1000 {
		t.Fatalf("lookahead default lost: %d", cfg.Viewport.Lookahead)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tailview.yaml")
	data := []byte(`stream:
  url: http://example.test/stream
  headers:
    X-Token: abc
store:
  backend: memory
ingest:
  appendRetries: 7
log:
  level: debug
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stream.URL != "http://example.test/stream" {
		t.Fatalf("url: %q", cfg.Stream.URL)
	}
	if cfg.Stream.Headers["X-Token"] != "abc" {
		t.Fatalf("headers: %v", cfg.Stream.Headers)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Fatalf("backend: %q", cfg.Store.Backend)
	}
	if cfg.Ingest.AppendRetries != 7 {
		t.Fatalf("retries: %d", cfg.Ingest.AppendRetries)
	}
	if cfg.Ingest.RetryBackoffMs != 100 {
		t.Fatalf("backoff default lost: %d", cfg.Ingest.RetryBackoffMs)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level: %q", cfg.Log.Level)
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(file, []byte("stream: [unterminated"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != BackendPebble {
		t.Fatalf("expected defaults")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("TAILVIEW_STREAM_URL", "http://env.test/logs")
	t.Setenv("TAILVIEW_STREAM_HEADERS", "Authorization=Bearer x, X-Env = 1,broken")
	t.Setenv("TAILVIEW_STORE_BACKEND", "SQLite")
	t.Setenv("TAILVIEW_PREFETCH_MARGIN", "8")
	t.Setenv("TAILVIEW_CONTAINER_HEIGHT_PX", "600")
	t.Setenv("TAILVIEW_APPEND_RETRIES", "not-a-number")
	FromEnv(&cfg)
	if cfg.Stream.URL != "http://env.test/logs" {
		t.Fatalf("env override url")
	}
	if len(cfg.Stream.Headers) != 2 || cfg.Stream.Headers["Authorization"] != "Bearer x" || cfg.Stream.Headers["X-Env"] != "1" {
		t.Fatalf("env headers: %v", cfg.Stream.Headers)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Fatalf("env override backend: %q", cfg.Store.Backend)
	}
	if cfg.Viewport.PrefetchMargin != 8 {
		t.Fatalf("env override margin")
	}
	if cfg.Viewport.ContainerHeightPx != 600 {
		t.Fatalf("env override container")
	}
	if cfg.Ingest.AppendRetries != 3 {
		t.Fatalf("invalid number should be ignored, got %d", cfg.Ingest.AppendRetries)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend": func(c *Config) { c.Store.Backend = "redis" },
		"fsync":   func(c *Config) { c.Store.Fsync = "sometimes" },
		"margin":  func(c *Config) { c.Viewport.PrefetchMargin = -1 },
		"height":  func(c *Config) { c.Viewport.ItemHeightPx = -5 },
		"retries": func(c *Config) { c.Ingest.AppendRetries = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
