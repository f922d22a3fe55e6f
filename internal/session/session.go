package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rzbill/tailview/internal/ingest"
	"github.com/rzbill/tailview/internal/logstore"
	"github.com/rzbill/tailview/internal/viewport"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// SourceFactory returns the stream to ingest. It is called on Start and
// again after every ResetAll.
type SourceFactory func() (ingest.Source, error)

// Static returns a factory that always yields src.
func Static(src ingest.Source) SourceFactory {
	return func() (ingest.Source, error) { return src, nil }
}

// Options configures a Session.
type Options struct {
	Geometry viewport.Geometry
	// ContainerHeightPx, when non-zero, marks the container ready at start.
	ContainerHeightPx float64
	// Ingest carries chunking, charset and retry settings. OnAppend and
	// Logger are set by the session.
	Ingest ingest.Options
	Logger logpkg.Logger
}

// Session is one viewing session over a store and a stream.
type Session struct {
	store     logstore.DurableLogStore
	newSource SourceFactory
	opts      Options
	logger    logpkg.Logger
	win       *viewport.Windower

	// life serializes Start, Stop and ResetAll.
	life    sync.Mutex
	base    context.Context
	started bool
	ing     *ingest.Ingestor
	idle    chan struct{}

	count   atomic.Uint64
	loading atomic.Bool

	errMu   sync.Mutex
	lastErr error

	subMu   sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// New builds a stopped session. Call Start to begin ingestion.
func New(store logstore.DurableLogStore, newSource SourceFactory, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	s := &Session{
		store:     store,
		newSource: newSource,
		opts:      opts,
		logger:    logger.With(logpkg.Component("session")),
		subs:      make(map[int]func(Event)),
	}
	s.idle = closedChan()
	s.win = viewport.New(store, viewport.Options{
		Geometry: opts.Geometry,
		Logger:   logger,
		Callbacks: viewport.Callbacks{
			OnRender:     func(w viewport.Window) { s.emit(Event{Kind: EventWindow, Window: w}) },
			OnScrollTo:   func(px float64) { s.emit(Event{Kind: EventScroll, ScrollPx: px}) },
			OnModeChange: func(m viewport.Mode) { s.emit(Event{Kind: EventMode, Mode: m}) },
			OnError:      func(err error) { s.emit(Event{Kind: EventError, Err: err}) },
		},
	})
	return s
}

// Start loads the persisted count, renders the first window and starts
// ingestion. ctx bounds the whole session; cancelling it stops ingestion.
func (s *Session) Start(ctx context.Context) error {
	s.life.Lock()
	defer s.life.Unlock()
	if s.started {
		return nil
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("session: load count: %w", err)
	}
	s.base = ctx
	s.started = true
	s.count.Store(n)

	if s.opts.ContainerHeightPx > 0 {
		// Read errors here leave an empty view and are reported via EventError.
		_ = s.win.SetContainerHeight(ctx, s.opts.ContainerHeightPx)
	}
	_ = s.win.SetCount(ctx, n)
	if err := s.startIngestLocked(); err != nil {
		// Leave the session startable so a later Start can retry.
		s.started = false
		return err
	}
	s.logger.Info("session started", logpkg.Uint64("count", n))
	return nil
}

func (s *Session) startIngestLocked() error {
	src, err := s.newSource()
	if err != nil {
		s.setErr(err)
		return fmt.Errorf("session: source: %w", err)
	}
	iopts := s.opts.Ingest
	iopts.Logger = s.logger
	refreshCtx := context.WithoutCancel(s.base)
	iopts.OnAppend = func(total uint64, _ int) {
		s.count.Store(total)
		_ = s.win.SetCount(refreshCtx, total)
	}
	in, err := ingest.New(src, s.store, iopts)
	if err != nil {
		s.setErr(err)
		return fmt.Errorf("session: ingest: %w", err)
	}
	s.ing = in
	s.idle = make(chan struct{})
	s.setErr(nil)
	s.setLoading(true)

	go func(in *ingest.Ingestor, idle chan struct{}) {
		defer close(idle)
		err := in.Run(s.base)
		s.setLoading(false)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.logger.Error("ingestion stopped", logpkg.Err(err))
		s.setErr(err)
		s.emit(Event{Kind: EventError, Err: err})
	}(in, s.idle)
	return nil
}

func (s *Session) stopLocked() {
	if s.ing == nil {
		return
	}
	s.ing.Cancel()
	<-s.idle
	s.ing = nil
}

// Stop cancels ingestion and waits for it to return. Stored data is kept.
func (s *Session) Stop() {
	s.life.Lock()
	defer s.life.Unlock()
	s.stopLocked()
	s.started = false
}

// ResetAll cancels ingestion, clears the store and all cached view state,
// then restarts ingestion from an empty log. The store is never cleared
// while an append can still land.
func (s *Session) ResetAll(ctx context.Context) error {
	s.life.Lock()
	defer s.life.Unlock()

	s.stopLocked()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("clear failed", logpkg.Err(err))
		s.setErr(err)
		s.emit(Event{Kind: EventError, Err: err})
		return fmt.Errorf("session: reset: %w", err)
	}
	s.count.Store(0)
	s.setErr(nil)
	s.win.Reset()
	s.emit(Event{Kind: EventReset})
	s.logger.Info("session reset")

	if !s.started {
		return nil
	}
	return s.startIngestLocked()
}

// ToggleAutoScroll flips between auto and manual mode.
func (s *Session) ToggleAutoScroll(ctx context.Context) (viewport.Mode, error) {
	return s.win.ToggleMode(ctx)
}

// OnScroll forwards a host scroll position in pixels.
func (s *Session) OnScroll(ctx context.Context, offsetPx float64) error {
	return s.win.OnScroll(ctx, offsetPx)
}

// Resize sets the visible container height in pixels.
func (s *Session) Resize(ctx context.Context, heightPx float64) error {
	return s.win.SetContainerHeight(ctx, heightPx)
}

// Count is the cached total number of stored entries.
func (s *Session) Count() uint64 { return s.count.Load() }

// Loading reports whether ingestion is running.
func (s *Session) Loading() bool { return s.loading.Load() }

// Window is the last rendered window.
func (s *Session) Window() viewport.Window { return s.win.Window() }

// State is the viewer's current scroll state.
func (s *Session) State() viewport.State { return s.win.State() }

// Geometry returns the layout constants in use.
func (s *Session) Geometry() viewport.Geometry { return s.win.Geometry() }

// Logs reads an inclusive id range straight from the store.
func (s *Session) Logs(ctx context.Context, lowID, highID uint64) ([]logstore.LogEntry, error) {
	return s.store.GetRange(ctx, lowID, highID)
}

// Changes returns a channel closed on the next append or clear. It is nil,
// and so never ready, when the store cannot signal changes.
func (s *Session) Changes() <-chan struct{} {
	if w, ok := s.store.(logstore.Watcher); ok {
		return w.Changes()
	}
	return nil
}

// Idle is closed once the current ingestion run has returned.
func (s *Session) Idle() <-chan struct{} {
	s.life.Lock()
	defer s.life.Unlock()
	return s.idle
}

// LastError is the error that stopped the last ingestion run, if any.
func (s *Session) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Snapshot captures the state surfaces report.
func (s *Session) Snapshot() Snapshot {
	st := s.win.State()
	snap := Snapshot{
		Mode:              st.Mode.String(),
		Count:             s.Count(),
		Loading:           s.Loading(),
		ScrollOffsetPx:    st.ScrollOffsetPx,
		ContainerHeightPx: st.ContainerHeightPx,
		PageSize:          s.win.PageSize(),
		Window:            s.win.Window(),
	}
	if err := s.LastError(); err != nil {
		snap.LastError = err.Error()
	}
	return snap
}

// Subscribe registers fn for every event. fn runs on the goroutine that
// produced the event and must not block or call back into the session
// synchronously. The returned func removes the subscription.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) emit(ev Event) {
	s.subMu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) setLoading(v bool) {
	if s.loading.Swap(v) != v {
		s.emit(Event{Kind: EventLoading, Loading: v})
	}
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
