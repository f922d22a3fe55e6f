// Package httpserver exposes a session's control surface as a small JSON
// API with a server-sent events feed of rendered windows.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	sess := rt.NewSession()
//	_ = sess.Start(ctx)
//	s := httpserver.New(rt, sess, logger)
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
