package viewport

import (
	"context"
	"sync"

	"github.com/rzbill/tailview/internal/logstore"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// RangeReader is the slice of the store the windower needs.
type RangeReader interface {
	GetRange(ctx context.Context, lowID, highID uint64) ([]logstore.LogEntry, error)
}

// State is the viewer's scroll state. It is never persisted.
type State struct {
	ScrollOffsetPx    float64 `json:"scrollOffsetPx"`
	ContainerHeightPx float64 `json:"containerHeightPx"`
	Mode              Mode    `json:"-"`
}

// Callbacks receive windower output. They are invoked in generation order
// and must not call back into the Windower synchronously.
type Callbacks struct {
	OnRender     func(Window)
	OnScrollTo   func(offsetPx float64)
	OnModeChange func(Mode)
	OnError      func(error)
}

// Windower is the viewport state machine.
type Windower struct {
	reader RangeReader
	geo    Geometry
	cb     Callbacks
	logger logpkg.Logger

	mu      sync.Mutex
	state   State
	count   uint64
	pending bool // auto refresh deferred until the container is sized
	gen     uint64
	applied uint64
	last    Window

	// emitMu keeps callback delivery in the order results were applied.
	emitMu sync.Mutex
}

// Options configures a Windower.
type Options struct {
	Geometry  Geometry
	Callbacks Callbacks
	Logger    logpkg.Logger
}

// New returns a Windower in ModeAuto with an unsized container.
func New(reader RangeReader, opts Options) *Windower {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Windower{
		reader: reader,
		geo:    opts.Geometry.normalized(),
		cb:     opts.Callbacks,
		logger: logger.With(logpkg.Component("viewport")),
		state:  State{Mode: ModeAuto},
	}
}

// Geometry returns the layout constants in use.
func (w *Windower) Geometry() Geometry { return w.geo }

// State returns the current scroll state.
func (w *Windower) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Count is the total the windower currently lays out against.
func (w *Windower) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Window returns the last rendered window.
func (w *Windower) Window() Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// PageSize for the current container.
func (w *Windower) PageSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.geo.PageSize(w.state.ContainerHeightPx)
}

// SetContainerHeight records the container size. The first non-zero size is
// the container-ready signal and replays a deferred auto refresh.
func (w *Windower) SetContainerHeight(ctx context.Context, heightPx float64) error {
	w.mu.Lock()
	w.state.ContainerHeightPx = max(heightPx, 0)
	w.mu.Unlock()
	return w.Refresh(ctx)
}

// SetCount updates the total after an append or clear. In auto mode the tail
// is re-read. In manual mode the range is re-read only when the current
// window reaches the old tail; otherwise the window is re-emitted with the
// new content height.
func (w *Windower) SetCount(ctx context.Context, count uint64) error {
	w.mu.Lock()
	prev := w.count
	w.count = count
	mode := w.state.Mode
	coversTail := w.last.High >= prev || count < prev
	w.mu.Unlock()

	if mode == ModeAuto || coversTail {
		return w.Refresh(ctx)
	}
	w.rerender()
	return nil
}

// OnScroll handles a user scroll event. In manual mode it issues a range
// read for the new position; in auto mode it only records the offset.
func (w *Windower) OnScroll(ctx context.Context, offsetPx float64) error {
	w.mu.Lock()
	w.state.ScrollOffsetPx = max(offsetPx, 0)
	mode := w.state.Mode
	w.mu.Unlock()
	if mode != ModeManual {
		return nil
	}
	return w.Refresh(ctx)
}

// ToggleMode flips auto and manual. Entering auto re-reads the tail.
func (w *Windower) ToggleMode(ctx context.Context) (Mode, error) {
	w.mu.Lock()
	if w.state.Mode == ModeAuto {
		w.state.Mode = ModeManual
	} else {
		w.state.Mode = ModeAuto
	}
	mode := w.state.Mode
	w.emitMu.Lock()
	w.mu.Unlock()
	w.logger.Debug("mode changed", logpkg.Str("mode", mode.String()))
	if w.cb.OnModeChange != nil {
		w.cb.OnModeChange(mode)
	}
	w.emitMu.Unlock()

	if mode == ModeAuto {
		return mode, w.Refresh(ctx)
	}
	return mode, nil
}

// Reset returns to the initial state (auto mode, empty log, top of the
// container) while keeping the container size.
func (w *Windower) Reset() {
	w.mu.Lock()
	modeChanged := w.state.Mode != ModeAuto
	w.state = State{Mode: ModeAuto, ContainerHeightPx: w.state.ContainerHeightPx}
	w.count = 0
	w.pending = false
	// Invalidate in-flight reads issued before the reset.
	w.gen++
	w.applied = w.gen
	w.last = Window{Mode: ModeAuto, ModeName: ModeAuto.String(), PageSize: w.geo.PageSize(w.state.ContainerHeightPx), Rows: []Row{}, Generation: w.gen}
	win := w.last
	w.emitMu.Lock()
	w.mu.Unlock()
	defer w.emitMu.Unlock()

	if modeChanged && w.cb.OnModeChange != nil {
		w.cb.OnModeChange(ModeAuto)
	}
	if w.cb.OnRender != nil {
		w.cb.OnRender(win)
	}
}

// Refresh recomputes the window for the current mode and state.
func (w *Windower) Refresh(ctx context.Context) error {
	w.mu.Lock()
	st, count := w.state, w.count
	pageSize := w.geo.PageSize(st.ContainerHeightPx)

	var low, high uint64
	query := true
	switch st.Mode {
	case ModeAuto:
		if st.ContainerHeightPx <= 0 {
			w.pending = true
			w.mu.Unlock()
			return nil
		}
		w.pending = false
		low, high, query = w.geo.AutoRange(count, pageSize)
	case ModeManual:
		low, high = w.geo.ManualRange(w.geo.StartIndex(st.ScrollOffsetPx, count))
		query = count > 0
	}
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	entries := []logstore.LogEntry{}
	if query {
		var err error
		entries, err = w.reader.GetRange(ctx, low, high)
		if err != nil {
			// Keep the stale window; a failed read never blanks the view.
			w.logger.Warn("range read failed", logpkg.Uint64("low", low), logpkg.Uint64("high", high), logpkg.Err(err))
			if w.cb.OnError != nil {
				w.cb.OnError(err)
			}
			return err
		}
	}
	w.apply(gen, st.Mode, low, high, count, pageSize, entries)
	return nil
}

// Pending reports whether an auto refresh is waiting for the container size.
func (w *Windower) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Windower) apply(gen uint64, mode Mode, low, high, count uint64, pageSize int, entries []logstore.LogEntry) {
	w.mu.Lock()
	if gen < w.applied || mode != w.state.Mode {
		w.mu.Unlock()
		w.logger.Debug("dropping stale window", logpkg.Uint64("generation", gen))
		return
	}
	w.applied = gen

	if mode == ModeAuto && len(entries) > pageSize {
		entries = entries[len(entries)-pageSize:]
	}
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{LogEntry: e, TopPx: w.geo.TopPx(e.ID)}
	}
	win := Window{
		Mode:            mode,
		ModeName:        mode.String(),
		Low:             low,
		High:            high,
		Rows:            rows,
		Count:           count,
		PageSize:        pageSize,
		ContentHeightPx: w.geo.ContentHeightPx(count),
		Generation:      gen,
	}
	w.last = win

	scrollTo := -1.0
	if mode == ModeAuto {
		scrollTo = max(win.ContentHeightPx-w.state.ContainerHeightPx, 0)
		w.state.ScrollOffsetPx = scrollTo
	}
	w.emitMu.Lock()
	w.mu.Unlock()
	defer w.emitMu.Unlock()

	if w.cb.OnRender != nil {
		w.cb.OnRender(win)
	}
	if scrollTo >= 0 && w.cb.OnScrollTo != nil {
		w.cb.OnScrollTo(scrollTo)
	}
}

// rerender re-emits the last window against the current count.
func (w *Windower) rerender() {
	w.mu.Lock()
	w.last.Count = w.count
	w.last.ContentHeightPx = w.geo.ContentHeightPx(w.count)
	win := w.last
	w.emitMu.Lock()
	w.mu.Unlock()
	defer w.emitMu.Unlock()
	if w.cb.OnRender != nil {
		w.cb.OnRender(win)
	}
}
