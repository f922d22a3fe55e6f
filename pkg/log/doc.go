// Package log is tailview's structured logger.
//
// Components receive a Logger explicitly; there is no package-level default.
// Context is attached with Field helpers and With:
//
//	l := log.NewLogger(log.WithLevel(log.InfoLevel), log.WithFormatter(&log.TextFormatter{}))
//	l = l.WithComponent("ingest").With(log.Str("source", url))
//	l.Info("chunk appended", log.Int("lines", n))
//
// Records flow through a log/slog handler, so attributes bound with With,
// slog groups and LogValuer values are resolved in one place before an Entry
// reaches the Formatter and Outputs. Redaction and per-message sampling are
// applied by that handler as well.
//
// ApplyConfig builds a logger from a Config (level, text or json, console,
// file or null outputs). RedirectStdLog routes the standard library logger
// through a Logger so third-party output lands in the same stream.
package log
