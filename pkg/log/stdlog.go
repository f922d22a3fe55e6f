package log

import (
	stdlog "log"
	"strings"
)

type stdWriter struct {
	l Logger
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.l.Info(msg, Component("stdlog"))
	}
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that forwards lines to l at info level.
func ToStdLogger(l Logger) *stdlog.Logger {
	return stdlog.New(stdWriter{l: l}, "", 0)
}

// RedirectStdLog points the standard library's default logger (used by
// Pebble and net/http) at l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{l: l})
}
