package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays TAILVIEW_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TAILVIEW_STREAM_URL"); v != "" {
		cfg.Stream.URL = v
	}
	if v := os.Getenv("TAILVIEW_STREAM_HEADERS"); v != "" {
		cfg.Stream.Headers = parseHeaders(v)
	}
	if v := os.Getenv("TAILVIEW_STREAM_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.ChunkSize = n
		}
	}
	if v := os.Getenv("TAILVIEW_STREAM_CHARSET"); v != "" {
		cfg.Stream.Charset = v
	}
	if v := os.Getenv("TAILVIEW_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TAILVIEW_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("TAILVIEW_FSYNC"); v != "" {
		cfg.Store.Fsync = v
	}
	if v := os.Getenv("TAILVIEW_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("TAILVIEW_ITEM_HEIGHT_PX"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Viewport.ItemHeightPx = f
		}
	}
	if v := os.Getenv("TAILVIEW_PREFETCH_MARGIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Viewport.PrefetchMargin = n
		}
	}
	if v := os.Getenv("TAILVIEW_LOOKAHEAD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Viewport.Lookahead = n
		}
	}
	if v := os.Getenv("TAILVIEW_CONTAINER_HEIGHT_PX"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Viewport.ContainerHeightPx = f
		}
	}
	if v := os.Getenv("TAILVIEW_APPEND_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.AppendRetries = n
		}
	}
	if v := os.Getenv("TAILVIEW_RETRY_BACKOFF_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.RetryBackoffMs = n
		}
	}
	if v := os.Getenv("TAILVIEW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TAILVIEW_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// parseHeaders reads "Key=Value,Other=Value" pairs.
func parseHeaders(v string) map[string]string {
	out := make(map[string]string)
	for _, p := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(val)
	}
	return out
}
