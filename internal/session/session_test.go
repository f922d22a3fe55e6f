package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/tailview/internal/ingest"
	"github.com/rzbill/tailview/internal/logstore"
	"github.com/rzbill/tailview/internal/viewport"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func stringSource(s string) ingest.Source {
	return &ingest.ReaderSource{R: strings.NewReader(s)}
}

// sequence hands out one source per call, in order.
func sequence(srcs ...ingest.Source) SourceFactory {
	var mu sync.Mutex
	return func() (ingest.Source, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(srcs) == 0 {
			return nil, errors.New("no more sources")
		}
		src := srcs[0]
		srcs = srcs[1:]
		return src, nil
	}
}

// failingReader yields data then a read error.
type failingReader struct {
	data string
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) loadingFlips() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []bool
	for _, ev := range l.events {
		if ev.Kind == EventLoading {
			out = append(out, ev.Loading)
		}
	}
	return out
}

func newSession(store logstore.DurableLogStore, f SourceFactory) *Session {
	return New(store, f, Options{
		Geometry:          viewport.DefaultGeometry(),
		ContainerHeightPx: 500,
		Ingest:            ingest.Options{RetryBackoff: time.Millisecond},
	})
}

func TestIngestsAndRendersTail(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	s := newSession(store, Static(stringSource("a\nb\nc\n")))
	events := &eventLog{}
	defer s.Subscribe(events.add)()

	require.NoError(t, s.Start(ctx))
	<-s.Idle()

	require.Equal(t, uint64(3), s.Count())
	require.False(t, s.Loading())
	win := s.Window()
	require.Len(t, win.Rows, 3)
	require.Equal(t, "a", win.Rows[0].Text)
	require.Equal(t, "c", win.Rows[2].Text)
	require.Equal(t, []bool{true, false}, events.loadingFlips())
	require.Contains(t, events.kinds(), EventWindow)
	require.Contains(t, events.kinds(), EventScroll)

	snap := s.Snapshot()
	require.Equal(t, "auto", snap.Mode)
	require.Equal(t, uint64(3), snap.Count)
	require.Equal(t, 25, snap.PageSize)
	require.Empty(t, snap.LastError)
}

func TestStartResumesPersistedCount(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	_, err := store.Append(ctx, []string{"old 1", "old 2"})
	require.NoError(t, err)

	s := newSession(store, Static(stringSource("new\n")))
	require.NoError(t, s.Start(ctx))
	<-s.Idle()

	require.Equal(t, uint64(3), s.Count())
	entries, err := s.Logs(ctx, 3, 3)
	require.NoError(t, err)
	require.Equal(t, []logstore.LogEntry{{ID: 3, Text: "new"}}, entries)
}

func TestStartRetriesAfterSourceError(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	factory := func() (ingest.Source, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("stream url unreachable")
		}
		return stringSource("a\nb\n"), nil
	}
	s := newSession(logstore.NewMemory(), factory)
	defer s.Stop()

	require.Error(t, s.Start(ctx))
	require.False(t, s.Loading())

	require.NoError(t, s.Start(ctx))
	<-s.Idle()
	require.Equal(t, 2, attempts)
	require.Equal(t, uint64(2), s.Count())
	require.Empty(t, s.Snapshot().LastError)
}

func TestStreamFailureClearsLoading(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	s := newSession(store, Static(&ingest.ReaderSource{R: &failingReader{data: "one\ntwo\n"}}))
	events := &eventLog{}
	defer s.Subscribe(events.add)()

	require.NoError(t, s.Start(ctx))
	<-s.Idle()

	require.False(t, s.Loading())
	require.ErrorIs(t, s.LastError(), ingest.ErrStreamFailure)
	require.Contains(t, events.kinds(), EventError)
	// Lines appended before the failure stay.
	require.Equal(t, uint64(2), s.Count())
	require.NotEmpty(t, s.Snapshot().LastError)
}

func TestResetMidIngestionRestartsAtOne(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	pr, pw := io.Pipe()
	s := newSession(store, sequence(
		&ingest.ReaderSource{R: pr},
		stringSource("fresh\n"),
	))
	events := &eventLog{}
	defer s.Subscribe(events.add)()
	require.NoError(t, s.Start(ctx))

	go func() { _, _ = pw.Write([]byte("x\ny\n")) }()
	require.Eventually(t, func() bool { return s.Count() == 2 }, timeout, tick)

	require.NoError(t, s.ResetAll(ctx))
	require.Contains(t, events.kinds(), EventReset)
	<-s.Idle()

	require.Equal(t, uint64(1), s.Count())
	entries, err := store.GetRange(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, []logstore.LogEntry{{ID: 1, Text: "fresh"}}, entries)
	require.Equal(t, viewport.ModeAuto, s.win.State().Mode)
	require.NoError(t, s.LastError())
}

func TestResetRestoresAutoMode(t *testing.T) {
	ctx := context.Background()
	s := newSession(logstore.NewMemory(), sequence(stringSource("a\n"), stringSource("b\n")))
	require.NoError(t, s.Start(ctx))
	<-s.Idle()

	mode, err := s.ToggleAutoScroll(ctx)
	require.NoError(t, err)
	require.Equal(t, viewport.ModeManual, mode)

	require.NoError(t, s.ResetAll(ctx))
	<-s.Idle()
	require.Equal(t, "auto", s.Snapshot().Mode)
	require.Equal(t, "b", s.Window().Rows[0].Text)
}

func TestResetWhileStoppedDoesNotRestart(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	_, err := store.Append(ctx, []string{"a", "b"})
	require.NoError(t, err)
	s := newSession(store, sequence())

	require.NoError(t, s.ResetAll(ctx))
	require.Zero(t, s.Count())
	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.False(t, s.Loading())
}

func TestManualScrollThroughSession(t *testing.T) {
	ctx := context.Background()
	var b strings.Builder
	for i := 1; i <= 2000; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	s := newSession(logstore.NewMemory(), Static(stringSource(b.String())))
	require.NoError(t, s.Start(ctx))
	<-s.Idle()

	_, err := s.ToggleAutoScroll(ctx)
	require.NoError(t, err)
	require.NoError(t, s.OnScroll(ctx, 250))

	win := s.Window()
	require.Equal(t, uint64(10), win.Low)
	require.Equal(t, uint64(1010), win.High)
	require.Equal(t, "line 10", win.Rows[0].Text)
}

func TestResizeDefersUntilReady(t *testing.T) {
	ctx := context.Background()
	s := New(logstore.NewMemory(), Static(stringSource("a\nb\n")), Options{})
	require.NoError(t, s.Start(ctx))
	<-s.Idle()
	require.Empty(t, s.Window().Rows)

	require.NoError(t, s.Resize(ctx, 100))
	require.Len(t, s.Window().Rows, 2)
}

func TestStopCancelsIngestion(t *testing.T) {
	ctx := context.Background()
	pr, pw := io.Pipe()
	defer pw.Close()
	s := newSession(logstore.NewMemory(), Static(&ingest.ReaderSource{R: pr}))
	require.NoError(t, s.Start(ctx))
	require.True(t, s.Loading())

	s.Stop()
	require.False(t, s.Loading())
	require.NoError(t, s.LastError())
	s.Stop() // idempotent
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	s := newSession(logstore.NewMemory(), sequence(stringSource("a\n"), stringSource("b\n")))
	events := &eventLog{}
	unsubscribe := s.Subscribe(events.add)
	require.NoError(t, s.Start(ctx))
	<-s.Idle()
	unsubscribe()
	unsubscribe()

	seen := len(events.kinds())
	require.NoError(t, s.ResetAll(ctx))
	<-s.Idle()
	require.Len(t, events.kinds(), seen)
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "window", EventWindow.String())
	require.Equal(t, "reset", EventReset.String())
	require.Equal(t, "unknown", EventKind(99).String())
}
