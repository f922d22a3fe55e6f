package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	cfgpkg "github.com/rzbill/tailview/internal/config"
	"github.com/rzbill/tailview/internal/ingest"
	"github.com/rzbill/tailview/internal/logstore"
	"github.com/rzbill/tailview/internal/session"
	pebblestore "github.com/rzbill/tailview/internal/storage/pebble"
	"github.com/rzbill/tailview/internal/viewport"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime owns the configured store and builds sessions over it.
type Runtime struct {
	config  cfgpkg.Config
	logger  logpkg.Logger
	db      *pebblestore.DB
	store   logstore.DurableLogStore
	metrics *StoreMetrics
}

// Open initializes the configured store backend and returns a Runtime.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	rt := &Runtime{config: cfg, logger: logger, metrics: &StoreMetrics{}}
	storeLogger := logger.With(logpkg.Component("logstore"), logpkg.Str("backend", cfg.Store.Backend))

	switch cfg.Store.Backend {
	case cfgpkg.BackendMemory:
		rt.store = logstore.NewMemory()
	case cfgpkg.BackendSQLite:
		path := cfg.StorePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("runtime: data dir: %w", err)
		}
		st, err := logstore.OpenSQLite(ctx, logstore.SQLiteOptions{
			Path:        path,
			Synchronous: sqliteSynchronous(cfg.Store.Fsync),
			Logger:      storeLogger,
		})
		if err != nil {
			return nil, err
		}
		rt.store = st
	default:
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       cfg.StorePath(),
			Fsync:         FsyncMode(cfg.Store.Fsync),
			FsyncInterval: time.Duration(cfg.Store.FsyncIntervalMs) * time.Millisecond,
			Metrics:       rt.metrics,
			Logger:        pebbleLogger{logger.With(logpkg.Component("pebble"))},
		})
		if err != nil {
			return nil, err
		}
		st, err := logstore.OpenPebble(db, logstore.PebbleOptions{Logger: storeLogger})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.db, rt.store = db, st
	}
	logger.Info("store opened", logpkg.Str("backend", cfg.Store.Backend), logpkg.Str("path", cfg.StorePath()))
	return rt, nil
}

// FsyncMode maps the config string onto the Pebble durability mode.
func FsyncMode(s string) pebblestore.FsyncMode {
	switch strings.ToLower(s) {
	case "interval":
		return pebblestore.FsyncModeInterval
	case "never":
		return pebblestore.FsyncModeNever
	default:
		return pebblestore.FsyncModeAlways
	}
}

func sqliteSynchronous(fsync string) string {
	switch strings.ToLower(fsync) {
	case "interval":
		return "NORMAL"
	case "never":
		return "OFF"
	default:
		return "FULL"
	}
}

// Close closes the store and, for Pebble, the underlying database.
func (r *Runtime) Close() error {
	var errs []error
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.store == nil {
		return errors.New("store not open")
	}
	if r.db != nil {
		if err := r.db.Ping(); err != nil {
			return err
		}
	}
	_, err := r.store.Count(ctx)
	return err
}

// Store exposes the durable log store.
func (r *Runtime) Store() logstore.DurableLogStore { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Metrics returns the store counters. Only the Pebble backend reports them.
func (r *Runtime) Metrics() MetricsSnapshot { return r.metrics.Snapshot() }

// Source builds the configured stream source. A URL of "-" reads stdin and
// a file:// URL or bare path reads a local file.
func (r *Runtime) Source() (ingest.Source, error) {
	u := r.config.Stream.URL
	switch {
	case u == "":
		return nil, errors.New("runtime: stream.url is not set")
	case u == "-":
		return &ingest.ReaderSource{R: os.Stdin, Name: "stdin"}, nil
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		h := make(http.Header, len(r.config.Stream.Headers))
		for k, v := range r.config.Stream.Headers {
			h.Set(k, v)
		}
		return ingest.NewHTTPSource(u, h), nil
	default:
		return &ingest.FileSource{Path: strings.TrimPrefix(u, "file://")}, nil
	}
}

// NewSession builds a session over the runtime's store using the
// configured stream, layout and retry settings.
func (r *Runtime) NewSession() *session.Session {
	cfg := r.config
	return session.New(r.store, r.Source, session.Options{
		Geometry: viewport.Geometry{
			ItemHeightPx:   cfg.Viewport.ItemHeightPx,
			PrefetchMargin: cfg.Viewport.PrefetchMargin,
			Lookahead:      cfg.Viewport.Lookahead,
		},
		ContainerHeightPx: cfg.Viewport.ContainerHeightPx,
		Ingest: ingest.Options{
			ChunkSize:     cfg.Stream.ChunkSize,
			Charset:       cfg.Stream.Charset,
			AppendRetries: cfg.Ingest.AppendRetries,
			RetryBackoff:  time.Duration(cfg.Ingest.RetryBackoffMs) * time.Millisecond,
		},
		Logger: r.logger,
	})
}

// pebbleLogger routes Pebble's internal logging through pkg/log. Pebble's
// informational chatter is demoted to debug.
type pebbleLogger struct{ l logpkg.Logger }

func (p pebbleLogger) Infof(format string, args ...interface{})  { p.l.Debugf(format, args...) }
func (p pebbleLogger) Errorf(format string, args ...interface{}) { p.l.Errorf(format, args...) }
func (p pebbleLogger) Fatalf(format string, args ...interface{}) { p.l.Fatalf(format, args...) }
