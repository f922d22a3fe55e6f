// Package runtime opens the configured durable store (Pebble, SQLite or
// in-memory), routes Pebble's logging through pkg/log, and builds sessions
// bound to the configured stream.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Stream.URL = "http://localhost:9000/logs"
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	s := rt.NewSession()
//	_ = s.Start(ctx)
//	defer s.Stop()
package runtime
