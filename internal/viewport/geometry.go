package viewport

import (
	"math"

	"github.com/rzbill/tailview/internal/logstore"
)

// Mode is the scroll regime.
type Mode int

const (
	// ModeAuto tracks the newest entries and forces scroll to the bottom.
	ModeAuto Mode = iota
	// ModeManual shows whatever range the user scrolled to.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Geometry holds the fixed layout constants.
type Geometry struct {
	ItemHeightPx float64
	// PrefetchMargin is the number of extra rows fetched beyond the visible
	// container to absorb scroll jitter.
	PrefetchMargin int
	// Lookahead is how far past the start id a manual-mode request reaches.
	Lookahead uint64
}

// DefaultGeometry is 25px rows, five rows of prefetch and a 1000-row manual
// lookahead.
func DefaultGeometry() Geometry {
	return Geometry{ItemHeightPx: 25, PrefetchMargin: 5, Lookahead: 1000}
}

func (g Geometry) normalized() Geometry {
	d := DefaultGeometry()
	if g.ItemHeightPx <= 0 {
		g.ItemHeightPx = d.ItemHeightPx
	}
	if g.PrefetchMargin < 0 {
		g.PrefetchMargin = 0
	}
	if g.Lookahead == 0 {
		g.Lookahead = d.Lookahead
	}
	return g
}

// PageSize is the number of rows fitting the container plus the prefetch margin.
func (g Geometry) PageSize(containerHeightPx float64) int {
	if containerHeightPx < 0 {
		containerHeightPx = 0
	}
	return int(math.Floor(containerHeightPx/g.ItemHeightPx)) + g.PrefetchMargin
}

// StartIndex maps a scroll offset to the first id of a manual window,
// clamped to [0, max(0, count-1)].
func (g Geometry) StartIndex(scrollOffsetPx float64, count uint64) uint64 {
	idx := math.Round(scrollOffsetPx / g.ItemHeightPx)
	if idx <= 0 || math.IsNaN(idx) {
		return 0
	}
	var hi uint64
	if count > 0 {
		hi = count - 1
	}
	if idx >= float64(hi) {
		return hi
	}
	return uint64(idx)
}

// AutoRange is the id-range requested in auto mode. ok is false for an
// empty log.
func (g Geometry) AutoRange(count uint64, pageSize int) (low, high uint64, ok bool) {
	if count == 0 {
		return 0, 0, false
	}
	low = 1
	if ps := uint64(max(pageSize, 0)); count > ps {
		low = count - ps
	}
	return low, count, true
}

// ManualRange is the id-range requested in manual mode. The second bound is
// an absolute id, not a count.
func (g Geometry) ManualRange(startIndex uint64) (low, high uint64) {
	high = startIndex + g.Lookahead
	if high < startIndex { // overflow
		high = math.MaxUint64
	}
	return startIndex, high
}

// TopPx is the absolute vertical position of a row.
func (g Geometry) TopPx(id uint64) float64 { return float64(id) * g.ItemHeightPx }

// ContentHeightPx is the height of the scrollable region for count entries.
func (g Geometry) ContentHeightPx(count uint64) float64 { return float64(count) * g.ItemHeightPx }

// Row is a rendered entry with its placement.
type Row struct {
	logstore.LogEntry
	TopPx float64 `json:"topPx"`
}

// Window is one rendered view of the log.
type Window struct {
	Mode            Mode    `json:"-"`
	ModeName        string  `json:"mode"`
	Low             uint64  `json:"low"`
	High            uint64  `json:"high"`
	Rows            []Row   `json:"rows"`
	Count           uint64  `json:"count"`
	PageSize        int     `json:"pageSize"`
	ContentHeightPx float64 `json:"contentHeightPx"`
	Generation      uint64  `json:"generation"`
}
