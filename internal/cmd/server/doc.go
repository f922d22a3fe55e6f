// Package serverrun exposes the Run entrypoint behind `tailview serve`: it
// opens the runtime, starts a session on the configured stream and serves
// the HTTP control surface until the context is cancelled.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Stream.URL = "http://localhost:9000/logs"
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg, HTTPAddr: ":8080"})
package serverrun
