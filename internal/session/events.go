package session

import (
	"github.com/rzbill/tailview/internal/viewport"
)

// EventKind identifies what changed.
type EventKind int

const (
	// EventWindow carries a newly rendered window.
	EventWindow EventKind = iota
	// EventScroll asks the host to move its scroll position to ScrollPx.
	EventScroll
	// EventMode reports an auto/manual switch.
	EventMode
	// EventLoading reports the ingestion indicator flipping.
	EventLoading
	// EventError reports a stream or storage failure.
	EventError
	// EventReset is sent once the store has been cleared.
	EventReset
)

var kindNames = map[EventKind]string{
	EventWindow:  "window",
	EventScroll:  "scroll",
	EventMode:    "mode",
	EventLoading: "loading",
	EventError:   "error",
	EventReset:   "reset",
}

func (k EventKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Event is one notification to subscribers. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind     EventKind
	Window   viewport.Window
	ScrollPx float64
	Mode     viewport.Mode
	Loading  bool
	Err      error
}

// Snapshot is a point-in-time view of the session for status surfaces.
type Snapshot struct {
	Mode              string          `json:"mode"`
	Count             uint64          `json:"count"`
	Loading           bool            `json:"loading"`
	ScrollOffsetPx    float64         `json:"scrollOffsetPx"`
	ContainerHeightPx float64         `json:"containerHeightPx"`
	PageSize          int             `json:"pageSize"`
	Window            viewport.Window `json:"window"`
	LastError         string          `json:"lastError,omitempty"`
}
