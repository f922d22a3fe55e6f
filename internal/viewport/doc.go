// Package viewport decides which contiguous id-range of the log to
// materialize for a scrollable container of fixed-height rows.
//
// Two modes exist. In ModeAuto the window always holds the newest PageSize
// entries and the container is scrolled to the bottom after every render.
// In ModeManual the window follows the user's scroll offset and covers a
// wide forward range so fast scrolling needs no extra round trip. Only
// ToggleMode switches between them.
//
// Every row is positioned absolutely at id*ItemHeightPx inside a container
// whose content height is count*ItemHeightPx, so the scrollbar reflects the
// full log while only a window is held in memory.
//
// Windower results are delivered through Callbacks. Refreshes triggered
// concurrently (new data, scroll events) are ordered by generation and stale
// results are dropped.
package viewport
