package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Stream   StreamConfig   `json:"stream" yaml:"stream"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Viewport ViewportConfig `json:"viewport" yaml:"viewport"`
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// StreamConfig describes the remote log stream.
type StreamConfig struct {
	URL       string            `json:"url" yaml:"url"`
	Headers   map[string]string `json:"headers" yaml:"headers"`
	ChunkSize int               `json:"chunkSize" yaml:"chunkSize"`
	// Charset is a WHATWG encoding label; empty means UTF-8.
	Charset string `json:"charset" yaml:"charset"`
}

// StoreConfig selects and tunes the durable store.
type StoreConfig struct {
	// Backend is one of "pebble", "sqlite" or "memory".
	Backend         string `json:"backend" yaml:"backend"`
	DataDir         string `json:"dataDir" yaml:"dataDir"`
	Fsync           string `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
}

// ViewportConfig holds the layout constants.
type ViewportConfig struct {
	ItemHeightPx   float64 `json:"itemHeightPx" yaml:"itemHeightPx"`
	PrefetchMargin int     `json:"prefetchMargin" yaml:"prefetchMargin"`
	Lookahead      uint64  `json:"lookahead" yaml:"lookahead"`
	// ContainerHeightPx, when set, marks the container ready at start for
	// hosts that never report a size.
	ContainerHeightPx float64 `json:"containerHeightPx" yaml:"containerHeightPx"`
}

// IngestConfig tunes append retries.
type IngestConfig struct {
	AppendRetries  int `json:"appendRetries" yaml:"appendRetries"`
	RetryBackoffMs int `json:"retryBackoffMs" yaml:"retryBackoffMs"`
}

// LogConfig is the subset of pkg/log settings exposed to users.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Store backends.
const (
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Stream: StreamConfig{
			ChunkSize: 32 << 10,
		},
		Store: StoreConfig{
			Backend:         BackendPebble,
			Fsync:           "always",
			FsyncIntervalMs: 5,
		},
		Viewport: ViewportConfig{
			ItemHeightPx:   25,
			PrefetchMargin: 5,
			Lookahead:      1000,
		},
		Ingest: IngestConfig{
			AppendRetries:  3,
			RetryBackoffMs: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendPebble, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch strings.ToLower(c.Store.Fsync) {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("config: fsync must be always, interval or never, got %q", c.Store.Fsync)
	}
	if c.Viewport.ItemHeightPx < 0 {
		return errors.New("config: viewport.itemHeightPx must not be negative")
	}
	if c.Viewport.PrefetchMargin < 0 {
		return errors.New("config: viewport.prefetchMargin must not be negative")
	}
	if c.Ingest.AppendRetries < 0 {
		return errors.New("config: ingest.appendRetries must not be negative")
	}
	return nil
}
