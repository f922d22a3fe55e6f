package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
)

const (
	redactedValue = "[REDACTED]"

	// slogFatal sits above slog.LevelError so FATAL survives the round trip.
	slogFatal = slog.LevelError + 4

	// maxSampleKeys bounds the sampler's memory; the table is reset when full.
	maxSampleKeys = 4096
)

// bridgeHandler is the slog.Handler behind BaseLogger. Attributes bound with
// With are resolved once; groups become dotted keys. Every record is turned
// into an Entry and written through the owning logger's formatter.
type bridgeHandler struct {
	logger  *BaseLogger
	bound   Fields
	prefix  string
	redact  map[string]struct{}
	sampler *sampler
}

func newBridgeHandler(l *BaseLogger) *bridgeHandler {
	h := &bridgeHandler{logger: l, bound: Fields{}}
	if len(l.redact) > 0 {
		h.redact = make(map[string]struct{}, len(l.redact))
		for _, k := range l.redact {
			h.redact[k] = struct{}{}
		}
	}
	if l.sampling[0] > 0 || l.sampling[1] > 0 {
		h.sampler = &sampler{initial: l.sampling[0], thereafter: l.sampling[1], seen: map[sampleKey]int{}}
	}
	return h
}

// Enabled defers level gating to BaseLogger, which checks before building a record.
func (h *bridgeHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	if h.sampler != nil && !h.sampler.allow(r.Level, r.Message) {
		return nil
	}

	fields := make(Fields, len(h.bound)+r.NumAttrs())
	for k, v := range h.bound {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		h.put(fields, h.prefix, a)
		return true
	})

	entry := &Entry{
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Timestamp: r.Time,
		Fields:    fields,
	}
	if err, ok := fields["error"].(error); ok {
		entry.Error = err
		delete(fields, "error")
	}
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		entry.Caller = frame.File + ":" + strconv.Itoa(frame.Line)
	}
	return h.logger.write(entry)
}

// put stores a into fields under prefix, flattening groups and applying redaction.
func (h *bridgeHandler) put(fields Fields, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			h.put(fields, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	if _, ok := h.redact[a.Key]; ok {
		fields[prefix+a.Key] = redactedValue
		return
	}
	fields[prefix+a.Key] = v.Any()
}

func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.bound = make(Fields, len(h.bound)+len(attrs))
	for k, v := range h.bound {
		nh.bound[k] = v
	}
	for _, a := range attrs {
		h.put(nh.bound, h.prefix, a)
	}
	return &nh
}

func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

type sampleKey struct {
	level slog.Level
	msg   string
}

// sampler passes the first initial records per (level, message) and then
// every thereafter-th one. A zero thereafter drops everything past initial.
type sampler struct {
	initial    int
	thereafter int

	mu   sync.Mutex
	seen map[sampleKey]int
}

func (s *sampler) allow(level slog.Level, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sampleKey{level, msg}
	n, ok := s.seen[k]
	if !ok && len(s.seen) >= maxSampleKeys {
		s.seen = map[sampleKey]int{}
	}
	s.seen[k] = n + 1
	if n < s.initial {
		return true
	}
	return s.thereafter > 0 && (n-s.initial)%s.thereafter == 0
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case FatalLevel:
		return slogFatal
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(l slog.Level) Level {
	switch {
	case l >= slogFatal:
		return FatalLevel
	case l >= slog.LevelError:
		return ErrorLevel
	case l >= slog.LevelWarn:
		return WarnLevel
	case l >= slog.LevelInfo:
		return InfoLevel
	default:
		return DebugLevel
	}
}

func fieldsToAttrs(fields []Field) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

func mapToAttrs(m Fields) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}
