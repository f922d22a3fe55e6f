// Package tui is the terminal host for a session. One terminal row is one
// log entry; the container height reported to the session is the number of
// visible rows times the item height, so the windower's pixel geometry maps
// directly onto lines.
package tui
