package serverrun

import (
	"context"
	"fmt"
	"sync"

	cfgpkg "github.com/rzbill/tailview/internal/config"
	"github.com/rzbill/tailview/internal/runtime"
	httpserver "github.com/rzbill/tailview/internal/server/http"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// Options for Run.
type Options struct {
	Config   cfgpkg.Config
	HTTPAddr string
	Logger   logpkg.Logger
}

// Run opens the store, starts a session on the configured stream and serves
// its control surface over HTTP until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = ":8080"
	}
	rt, err := runtime.Open(ctx, runtime.Options{Config: opts.Config, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	sess := rt.NewSession()
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	// Stop ingestion before the store closes.
	defer sess.Stop()

	logger.Info("Starting tailview server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("stream", opts.Config.Stream.URL),
		logpkg.Str("backend", opts.Config.Store.Backend),
	)

	hsrv := httpserver.New(rt, sess, logger)
	var (
		wg     sync.WaitGroup
		srvErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(ctx, opts.HTTPAddr); err != nil && ctx.Err() == nil {
			logger.Error("http server failed", logpkg.Err(err))
			srvErr = err
		}
	}()
	wg.Wait()
	hsrv.Close()
	return srvErr
}
